package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfiler_Scopes(t *testing.T) {
	p := NewProfiler()
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }

	p.BeginScope("source")
	clock = clock.Add(2 * time.Millisecond)
	p.EndScope("source")

	p.Time("fluid", func() { clock = clock.Add(500 * time.Microsecond) })

	p.BeginScope("source")
	clock = clock.Add(time.Millisecond)
	p.EndScope("source")

	assert.Equal(t, []string{"source", "fluid"}, p.Order)
	assert.Equal(t, time.Millisecond, p.Scopes["source"])
	assert.Equal(t, "source 1.00ms fluid 0.50ms", p.Summary())

	p.EndScope("never started")
	assert.NotContains(t, p.Scopes, "never started")

	p.Reset()
	assert.Zero(t, p.Scopes["fluid"])
	assert.Len(t, p.Order, 2)
}

func TestProfiler_StatsString(t *testing.T) {
	p := NewProfiler()
	p.SetCount("particles", 42)
	p.SetCount("draws", 5)
	p.Time("scene", func() {})

	s := p.GetStatsString()
	assert.Contains(t, s, "Timings (CPU):")
	assert.Contains(t, s, "scene")
	assert.Less(t, strings.Index(s, "draws"), strings.Index(s, "particles"), "counters are sorted")
	assert.Contains(t, s, ": 42")
}
