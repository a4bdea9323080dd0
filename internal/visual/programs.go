// SPDX-License-Identifier: MIT
package visual

import (
	"math"
	"slices"
	"sync"
)

// Program shades one pixel. u and v are in [0, 1) with v down, t is the
// accumulated shader time and level the smoothed loudness. It returns an
// intensity in [0, 1] mixed between the palette colours.
type Program func(u, v, t, level float64) float64

var (
	programsMu sync.RWMutex
	programs   = map[string]Program{
		"plasma": plasma,
		"tunnel": tunnel,
		"rings":  rings,
		"solid":  func(_, _, _, level float64) float64 { return level },
	}
)

// RegisterProgram adds or replaces a named program.
func RegisterProgram(name string, p Program) {
	programsMu.Lock()
	defer programsMu.Unlock()
	programs[name] = p
}

// Programs returns the registered names, sorted.
func Programs() []string {
	programsMu.RLock()
	defer programsMu.RUnlock()
	names := make([]string, 0, len(programs))
	for n := range programs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func lookupProgram(name string) (Program, bool) {
	programsMu.RLock()
	defer programsMu.RUnlock()
	p, ok := programs[name]
	return p, ok
}

func plasma(u, v, t, level float64) float64 {
	s := math.Sin(u*10+t) +
		math.Sin((v*10+t)/2) +
		math.Sin((u*10+v*10+t)/2) +
		math.Sin(math.Hypot(u-0.5, v-0.5)*20*(1+level)-t)
	return 0.5 + s/8
}

func tunnel(u, v, t, level float64) float64 {
	x, y := u-0.5, v-0.5
	d := math.Hypot(x, y) + 1e-3
	a := math.Atan2(y, x)
	s := math.Sin(1/d*2+t*2) * math.Cos(a*4+t)
	return clamp(0.5+0.5*s*(0.6+level), 0, 1)
}

func rings(u, v, t, level float64) float64 {
	d := math.Hypot(u-0.5, v-0.5)
	return 0.5 + 0.5*math.Sin(d*40*(0.5+level)-t*3)
}
