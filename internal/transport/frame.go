// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"sync"
)

// FrameStore keeps a copy of the most recent rendered frame and serves it
// as PNG. Store copies, so the renderer can reuse its target.
type FrameStore struct {
	mu   sync.RWMutex
	img  *image.RGBA
	seq  uint64
	enc  png.Encoder
	buf  bytes.Buffer
	bufN uint64 // seq encoded in buf
}

// NewFrameStore returns an empty store.
func NewFrameStore() *FrameStore {
	return &FrameStore{enc: png.Encoder{CompressionLevel: png.BestSpeed}}
}

// Store copies src.
func (s *FrameStore) Store(src *image.RGBA) {
	if src == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := src.Bounds()
	if s.img == nil || s.img.Bounds() != b {
		s.img = image.NewRGBA(b)
	}
	copy(s.img.Pix, src.Pix)
	s.seq++
}

// Latest returns a copy of the stored frame, or nil before the first Store.
func (s *FrameStore) Latest() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return nil
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// Seq counts stored frames.
func (s *FrameStore) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// ServeHTTP writes the latest frame as PNG, or 503 before the first frame.
// The encoding is cached until the next Store.
func (s *FrameStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.img == nil {
		s.mu.Unlock()
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	if s.bufN != s.seq || s.buf.Len() == 0 {
		s.buf.Reset()
		if err := s.enc.Encode(&s.buf, s.img); err != nil {
			s.mu.Unlock()
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.bufN = s.seq
	}
	body := bytes.Clone(s.buf.Bytes())
	seq := s.seq
	s.mu.Unlock()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	_, _ = w.Write(body)
}
