// SPDX-License-Identifier: MIT
package anim

// FrameHistory is the number of samples FrameStats averages over.
const FrameHistory = 60

// FrameStats tracks frame rate over a rolling window. Min, max and average
// are recomputed at most once per second of accumulated frame time so the
// readout stays legible.
type FrameStats struct {
	history [FrameHistory]float64
	next    int
	count   int
	elapsed float64

	current float64
	min     float64
	max     float64
	avg     float64
}

// FPSReading is a snapshot of FrameStats.
type FPSReading struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
}

// Tick records one frame of dt seconds.
func (s *FrameStats) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	s.current = 1 / dt
	s.history[s.next] = s.current
	s.next = (s.next + 1) % FrameHistory
	s.count = min(s.count+1, FrameHistory)

	s.elapsed += dt
	if s.elapsed >= 1 || s.count == 1 {
		s.elapsed = 0
		s.recompute()
	}
}

func (s *FrameStats) recompute() {
	lo, hi, sum := s.history[0], s.history[0], 0.0
	for _, v := range s.history[:s.count] {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	s.min, s.max, s.avg = lo, hi, sum/float64(s.count)
}

// Reading returns the latest values.
func (s *FrameStats) Reading() FPSReading {
	return FPSReading{Current: s.current, Min: s.min, Max: s.max, Avg: s.avg}
}

// Reset clears history.
func (s *FrameStats) Reset() { *s = FrameStats{} }
