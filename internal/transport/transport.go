// SPDX-License-Identifier: MIT

// Package transport publishes per-frame results to the outside world:
// WebSocket clients, UDP listeners, the latest rendered frame over HTTP
// and the debug log.
package transport

import (
	"errors"

	"audioviz/internal/analysis"
	applog "audioviz/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

var tLog = applog.Named("transport")

// Transport defines a generic interface for sending processed data or events.
// Implementations must be safe for concurrent use and must not block the
// frame loop.
type Transport interface {
	Send(data any) error
	Close() error
}

// SpectrumSource provides the latest spectrum without allocating.
type SpectrumSource interface {
	GetMagnitudesInto(dest []float64) (int, error)
	FrameSize() int
}

// FeatureFrame is the per-frame payload broadcast to clients.
type FeatureFrame struct {
	Seq      uint64             `json:"seq"`
	Time     float64            `json:"time"`
	RMS      float64            `json:"rms"`
	Peak     float64            `json:"peak"`
	Beat     bool               `json:"beat"`
	Bands    map[string]float64 `json:"bands,omitempty"`
	Spectrum []float32          `json:"spectrum,omitempty"`
}

// NewFeatureFrame copies f and a decimated spectrum of at most bins values
// into a frame that outlives the caller's buffers.
func NewFeatureFrame(seq uint64, t float64, f analysis.Features, spectrum []float64, bins int) FeatureFrame {
	ff := FeatureFrame{Seq: seq, Time: t, RMS: f.RMS, Peak: f.Peak, Beat: f.Beat}
	if len(f.Bands) > 0 {
		ff.Bands = make(map[string]float64, len(f.Bands))
		for k, v := range f.Bands {
			ff.Bands[k] = v
		}
	}
	if bins > 0 && len(spectrum) > 0 {
		ff.Spectrum = decimate(spectrum, bins)
	}
	return ff
}

// decimate reduces spectrum to n values by taking the maximum of each
// group, so narrow peaks survive.
func decimate(spectrum []float64, n int) []float32 {
	if n > len(spectrum) {
		n = len(spectrum)
	}
	out := make([]float32, n)
	for i := range n {
		lo := i * len(spectrum) / n
		hi := max((i+1)*len(spectrum)/n, lo+1)
		var m float64
		for _, v := range spectrum[lo:hi] {
			m = max(m, v)
		}
		out[i] = float32(m)
	}
	return out
}
