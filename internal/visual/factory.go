// SPDX-License-Identifier: MIT
package visual

import (
	"fmt"
	"slices"
)

// Type names.
const (
	TypeTriangle   = "Triangle"
	TypeCircle     = "Circle"
	TypeBars       = "Bars"
	TypeWaveform   = "Waveform"
	TypeShader     = "Shader"
	TypeFPS        = "FPS"
	TypeBackground = "Background"
)

type factory struct {
	name string
	new  func() Visualizer
}

// factories lists the instantiable types in menu order. Background is a
// registry singleton and is not listed.
var factories = []factory{
	{TypeTriangle, func() Visualizer { return NewTriangle() }},
	{TypeCircle, func() Visualizer { return NewCircle() }},
	{TypeBars, func() Visualizer { return NewBars() }},
	{TypeWaveform, func() Visualizer { return NewWaveform() }},
	{TypeShader, func() Visualizer { return NewShader() }},
	{TypeFPS, func() Visualizer { return NewFPS() }},
}

// Types returns the names accepted by New.
func Types() []string {
	names := make([]string, len(factories))
	for i, f := range factories {
		names[i] = f.name
	}
	return names
}

// Known reports whether typeName can be instantiated.
func Known(typeName string) bool {
	return slices.ContainsFunc(factories, func(f factory) bool { return f.name == typeName })
}

// New returns a fresh visualizer with default config.
func New(typeName string) (Visualizer, error) {
	for _, f := range factories {
		if f.name == typeName {
			return f.new(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
}
