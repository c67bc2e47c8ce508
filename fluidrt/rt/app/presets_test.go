package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/gekko-fluid/fluidrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePreset = `presets:
  - name: water
    base: [0.1, 0.4, 0.8, 0.6]
    falloff: [0.45, 0.08, 0.04, 0.8]
    clear: true
`

const twoPresets = onePreset + `  - name: ink
    base: [0.05, 0.05, 0.1, 1.0]
    falloff: [0.9, 0.9, 0.8, 1.0]
    falloff_scale: 0.8
`

func TestPresetWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(onePreset), 0o644))

	pw, err := WatchPresets(path, nil)
	require.NoError(t, err)
	defer pw.Close()

	_, ok := pw.Poll()
	assert.False(t, ok, "nothing pending before a change")

	require.NoError(t, os.WriteFile(path, []byte(twoPresets), 0o644))

	var got *core.FluidPresets
	require.Eventually(t, func() bool {
		p, ok := pw.Poll()
		if ok && p.Len() == 2 {
			got = p
			return true
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{"water", "ink"}, got.Names())
	assert.InDelta(t, 0.8, got.At(1).FalloffScale, 1e-6)
}

func TestPresetWatcher_IgnoresOtherFilesAndBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(onePreset), 0o644))

	pw, err := WatchPresets(path, nil)
	require.NoError(t, err)
	defer pw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(twoPresets), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("presets: [\n"), 0o644))
	time.Sleep(200 * time.Millisecond)

	_, ok := pw.Poll()
	assert.False(t, ok)
}

func TestWatchPresets_MissingDirectory(t *testing.T) {
	_, err := WatchPresets(filepath.Join(t.TempDir(), "nope", "presets.yaml"), nil)
	assert.Error(t, err)
}

func TestControls_SetPresetsKeepsSelection(t *testing.T) {
	presets := core.DefaultFluidPresets()
	c := Controls{Presets: presets, Options: core.DefaultDrawingOptions(presets.At(0))}
	require.Equal(t, "water", c.Options.FluidColor.Name)

	reloaded, err := core.ParseFluidPresets([]byte(twoPresets))
	require.NoError(t, err)
	c.SetPresets(reloaded)
	assert.Equal(t, 0, c.PresetIndex)
	assert.Same(t, reloaded.At(0), c.Options.FluidColor)

	c.Apply(ActionNextPreset)
	assert.Equal(t, "ink", c.Options.FluidColor.Name)

	// "ink" is gone from the next set, so selection falls back to the first
	c.SetPresets(core.DefaultFluidPresets())
	assert.Equal(t, 0, c.PresetIndex)
	assert.Equal(t, "water", c.Options.FluidColor.Name)
}
