// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSaveLoadPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preset.json")
	in := &Preset{
		Order:   []string{"Circle_1", "Bars_1"},
		Enabled: []string{"Bars_1"},
		Configs: map[string]string{
			"Circle_1":   `{"settings":{"dotsMin":8}}`,
			"Background": `{"color":"#000000"}`,
		},
	}
	require.NoError(t, SavePreset(path, in))

	out, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadPresetMissing(t *testing.T) {
	p, err := LoadPreset(filepath.Join(t.TempDir(), "absent.json"))
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.NotNil(t, p)
	assert.Empty(t, p.Configs)
}

func TestLoadPresetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadPreset(path)
	assert.ErrorContains(t, err, "failed to parse preset")
}

func TestWatchPresetReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "preset.json")
	require.NoError(t, SavePreset(path, &Preset{Configs: map[string]string{}}))

	got := make(chan *Preset, 4)
	w, err := WatchPreset(path, 20*time.Millisecond, func(p *Preset) { got <- p })
	require.NoError(t, err)

	require.NoError(t, SavePreset(path, &Preset{
		Enabled: []string{"Waveform_1"},
		Configs: map[string]string{"Waveform_1": "{}"},
	}))

	select {
	case p := <-got:
		assert.Equal(t, []string{"Waveform_1"}, p.Enabled)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after preset write")
	}
	require.NoError(t, w.Close())
}
