// SPDX-License-Identifier: MIT
package anim

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

// ExpSmoother follows a target with frame-rate independent exponential
// smoothing: each step moves by 1 - e^(-dt*Rate) of the remaining gap.
type ExpSmoother struct {
	Rate  float64
	Value float64
}

// Update advances toward target by dt seconds and returns the new value.
func (s *ExpSmoother) Update(target, dt float64) float64 {
	if dt <= 0 {
		return s.Value
	}
	s.Value += (target - s.Value) * SmoothingFactor(dt, s.Rate)
	return s.Value
}

// SmoothingFactor is 1 - e^(-dt*rate).
func SmoothingFactor(dt, rate float64) float64 {
	return 1 - math.Exp(-dt*rate)
}

// Spring is a damped spring toward a moving target. The harmonica
// coefficients are rebuilt only when dt changes.
type Spring struct {
	angularFrequency float64
	damping          float64

	dt       float64
	spring   harmonica.Spring
	position float64
	velocity float64
}

// NewSpring returns a spring at rest at zero.
func NewSpring(angularFrequency, damping float64) *Spring {
	return &Spring{angularFrequency: angularFrequency, damping: damping}
}

// Update moves the spring toward target over dt seconds.
func (s *Spring) Update(target, dt float64) float64 {
	if dt <= 0 {
		return s.position
	}
	if dt != s.dt {
		s.spring = harmonica.NewSpring(dt, s.angularFrequency, s.damping)
		s.dt = dt
	}
	s.position, s.velocity = s.spring.Update(s.position, s.velocity, target)
	return s.position
}

// Value returns the current position.
func (s *Spring) Value() float64 { return s.position }

// Reset puts the spring at rest at position.
func (s *Spring) Reset(position float64) {
	s.position = position
	s.velocity = 0
}

// Angle accumulates rotation in degrees, wrapped to [0, 360).
type Angle struct {
	degrees float64
}

// Advance adds speed (degrees per second) over dt.
func (a *Angle) Advance(speed, dt float64) float64 {
	a.degrees = WrapDegrees(a.degrees + speed*dt)
	return a.degrees
}

// Degrees returns the accumulated angle.
func (a *Angle) Degrees() float64 { return a.degrees }

// Plus returns offset + accumulated, wrapped.
func (a *Angle) Plus(offset float64) float64 {
	return WrapDegrees(offset + a.degrees)
}

// Reset zeroes the accumulator.
func (a *Angle) Reset() { a.degrees = 0 }

// WrapDegrees maps d into [0, 360).
func WrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
