// SPDX-License-Identifier: MIT
package anim

// MinBrightness is the level below which a trail entry is evicted.
const MinBrightness = 0.01

type trailEntry[T any] struct {
	value      T
	brightness float64
}

// Trail is a bounded, most-recent-first history of rendered geometry. Each
// Advance decays every stored entry by the fade factor, evicts entries that
// fell below MinBrightness or past the configured length, then prepends the
// new frame at full brightness. An entry pushed k advances ago therefore has
// brightness fade^k.
//
// Evicted values are kept and handed back by Next so slice-typed geometry
// can be refilled without allocating.
type Trail[T any] struct {
	entries []trailEntry[T]
	spare   []T
	length  int
	fade    float64
}

// NewTrail returns an empty trail holding at most length frames.
func NewTrail[T any](length int, fade float64) *Trail[T] {
	t := &Trail[T]{}
	t.Configure(length, fade)
	return t
}

// Configure changes the bound and fade factor. Surplus entries are dropped
// immediately. length < 1 is treated as 1; fade is clamped to [0, 1).
func (t *Trail[T]) Configure(length int, fade float64) {
	t.length = max(length, 1)
	t.fade = min(max(fade, 0), 0.9999)
	for len(t.entries) > t.length {
		last := len(t.entries) - 1
		t.spare = append(t.spare, t.entries[last].value)
		t.entries = t.entries[:last]
	}
}

// Next decays and evicts, then prepends a fresh full-brightness slot and
// returns it for the caller to fill. The pointer is valid until the next
// call that mutates the trail. The slot may hold a recycled value.
func (t *Trail[T]) Next() *T {
	// Surviving entries shift down one index once the new frame is prepended.
	kept := t.decay(1)

	var v T
	if n := len(t.spare); n > 0 {
		v = t.spare[n-1]
		var zero T
		t.spare[n-1] = zero
		t.spare = t.spare[:n-1]
	}
	t.entries = append(t.entries, trailEntry[T]{})
	copy(t.entries[1:], t.entries[:kept])
	t.entries[0] = trailEntry[T]{value: v, brightness: 1}
	return &t.entries[0].value
}

// Decay fades and evicts without adding a frame, so a trail with no new
// input empties within ceil(log MinBrightness / log fade) calls.
func (t *Trail[T]) Decay() {
	t.decay(0)
}

// decay applies one fade step and evicts entries that fell below
// MinBrightness or whose index plus shift reaches the length bound. It
// returns the number of entries kept.
func (t *Trail[T]) decay(shift int) int {
	kept := 0
	for i := range t.entries {
		e := t.entries[i]
		e.brightness *= t.fade
		if e.brightness < MinBrightness || i+shift >= t.length {
			t.spare = append(t.spare, e.value)
			continue
		}
		t.entries[kept] = e
		kept++
	}
	var zero trailEntry[T]
	for i := kept; i < len(t.entries); i++ {
		t.entries[i] = zero
	}
	t.entries = t.entries[:kept]
	return kept
}

// Advance pushes geometry as the newest frame.
func (t *Trail[T]) Advance(geometry T) {
	*t.Next() = geometry
}

// Each visits entries oldest first so the newest paints on top.
func (t *Trail[T]) Each(fn func(geometry T, brightness float64)) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		fn(t.entries[i].value, t.entries[i].brightness)
	}
}

// Newest returns the most recent frame.
func (t *Trail[T]) Newest() (T, bool) {
	if len(t.entries) == 0 {
		var zero T
		return zero, false
	}
	return t.entries[0].value, true
}

// Len returns the number of live entries.
func (t *Trail[T]) Len() int { return len(t.entries) }

// Reset drops all entries, keeping their storage for reuse.
func (t *Trail[T]) Reset() {
	for i := range t.entries {
		t.spare = append(t.spare, t.entries[i].value)
	}
	t.entries = t.entries[:0]
}
