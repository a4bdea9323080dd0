// SPDX-License-Identifier: MIT
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Preset is the persisted visualizer layout: one opaque config string per
// instance id plus the reserved "Background" and "PostProcessing" keys.
// Order keeps creation order across save and reload.
type Preset struct {
	Order   []string          `json:"order,omitempty"`
	Enabled []string          `json:"enabled"`
	Configs map[string]string `json:"configs"`
}

// LoadPreset reads a preset file. A missing file yields an empty preset and
// os.ErrNotExist so callers can tell first runs apart from broken files.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Preset{Configs: map[string]string{}}, err
		}
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	p := &Preset{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", path, err)
	}
	if p.Configs == nil {
		p.Configs = map[string]string{}
	}
	return p, nil
}

// SavePreset writes the preset through a temp file and rename so a watcher
// never observes a half-written file.
func SavePreset(path string, p *Preset) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preset: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preset dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preset-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp preset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write preset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close preset: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace preset: %w", err)
	}
	return nil
}
