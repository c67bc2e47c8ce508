package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the last CPU duration of each named frame stage plus a
// few counters, shown in the window title and the debug log.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	if _, seen := p.Scopes[name]; !seen {
		p.Order = append(p.Order, name)
		p.Scopes[name] = 0
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = p.now().Sub(start)
		delete(p.StartTimes, name)
	}
}

// Time runs fn inside a scope.
func (p *Profiler) Time(name string, fn func()) {
	p.BeginScope(name)
	fn()
	p.EndScope(name)
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset zeroes the timings and keeps the display order.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// Summary is a single line for the window title.
func (p *Profiler) Summary() string {
	parts := make([]string, 0, len(p.Order))
	for _, name := range p.Order {
		parts = append(parts, fmt.Sprintf("%s %.2fms", name, ms(p.Scopes[name])))
	}
	return strings.Join(parts, " ")
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms(p.Scopes[name])))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}
