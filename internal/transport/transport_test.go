// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"audioviz/internal/analysis"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestNewFeatureFrameCopies(t *testing.T) {
	bands := map[string]float64{"bass": 0.5}
	spectrum := []float64{0, 1, 0, 0, 3, 0, 0, 2}
	ff := NewFeatureFrame(7, 1.5, analysis.Features{RMS: 0.2, Peak: 0.9, Bands: bands, Beat: true}, spectrum, 4)

	bands["bass"] = 0
	assert.Equal(t, 0.5, ff.Bands["bass"])
	assert.Equal(t, []float32{1, 0, 3, 2}, ff.Spectrum)
	assert.Equal(t, uint64(7), ff.Seq)
	assert.True(t, ff.Beat)

	short := NewFeatureFrame(1, 0, analysis.Features{}, []float64{1, 2}, 8)
	assert.Equal(t, []float32{1, 2}, short.Spectrum)
	assert.Nil(t, NewFeatureFrame(1, 0, analysis.Features{}, nil, 8).Spectrum)
}

func TestWebSocketHubBroadcast(t *testing.T) {
	var clients atomic.Int64
	hub := NewWebSocketHub(WithClientHook(func(d int) { clients.Add(int64(d)) }))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	defer a.Close()
	defer b.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), clients.Load())

	require.NoError(t, hub.Send(FeatureFrame{Seq: 3, RMS: 0.25}))
	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var got FeatureFrame
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, uint64(3), got.Seq)
		assert.Equal(t, 0.25, got.RMS)
	}

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Clients())
	assert.Equal(t, int64(0), clients.Load())
	assert.ErrorIs(t, hub.Send(FeatureFrame{}), ErrClosed)
}

func TestWebSocketHubMinInterval(t *testing.T) {
	now := time.Unix(100, 0)
	hub := NewWebSocketHub(WithMinInterval(50 * time.Millisecond))
	hub.now = func() time.Time { return now }
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Send(map[string]int{"n": 1}))
	now = now.Add(10 * time.Millisecond)
	require.NoError(t, hub.Send(map[string]int{"n": 2})) // inside the interval
	now = now.Add(50 * time.Millisecond)
	require.NoError(t, hub.Send(map[string]int{"n": 3}))

	var seen []int
	for range 2 {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var got map[string]int
		require.NoError(t, json.Unmarshal(msg, &got))
		seen = append(seen, got["n"])
	}
	assert.Equal(t, []int{1, 3}, seen)
}

func TestWebSocketHubNoClients(t *testing.T) {
	hub := NewWebSocketHub()
	assert.NoError(t, hub.Send(make(chan int))) // not marshalled without clients
	assert.NoError(t, hub.Close())
	assert.NoError(t, hub.Close())
}

func TestFrameStore(t *testing.T) {
	store := NewFrameStore()

	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame.png", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Nil(t, store.Latest())

	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})
	store.Store(src)
	src.Set(1, 1, color.RGBA{G: 255, A: 255}) // store holds its own copy

	rec = httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Frame-Seq"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	r, g, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)

	store.Store(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	assert.Equal(t, uint64(2), store.Seq())
	assert.Equal(t, image.Rect(0, 0, 8, 8), store.Latest().Bounds())
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport(0)
	require.NoError(t, lt.Send(FeatureFrame{Seq: 1}))
	require.NoError(t, lt.Send(make(chan int))) // unmarshalable payloads are logged raw
	assert.Equal(t, uint64(2), lt.Count())
	require.NoError(t, lt.Close())
	assert.ErrorIs(t, lt.Send(1), ErrClosed)
}

func TestServerRoutes(t *testing.T) {
	store := NewFrameStore()
	store.Store(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	hub := NewWebSocketHub()
	defer hub.Close()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "frames_total 1\n")
	})
	s := NewServer("127.0.0.1:0", Routes{WebSocket: hub, Frame: store, Metrics: metrics})
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	base := "http://" + s.Addr()
	for path, want := range map[string]int{
		"/healthz":   http.StatusOK,
		"/frame.png": http.StatusOK,
		"/metrics":   http.StatusOK,
		"/missing":   http.StatusNotFound,
	} {
		resp, err := http.Get(base + path)
		require.NoError(t, err, path)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	require.NoError(t, err)
	conn.Close()

	require.NoError(t, s.Shutdown(context.Background()))
	http.DefaultClient.CloseIdleConnections()
}
