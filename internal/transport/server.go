// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Routes are the optional handlers mounted by Server. Nil handlers are
// not mounted.
type Routes struct {
	WebSocket http.Handler // /ws
	Frame     http.Handler // /frame.png
	Metrics   http.Handler // /metrics
	Extra     map[string]http.Handler
}

// Server is the local HTTP endpoint for clients and scrapers.
type Server struct {
	srv *http.Server
	ln  net.Listener
	wg  sync.WaitGroup
}

// NewServer builds the mux; nothing listens until Start.
func NewServer(addr string, routes Routes) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if routes.WebSocket != nil {
		mux.Handle("/ws", routes.WebSocket)
	}
	if routes.Frame != nil {
		mux.Handle("GET /frame.png", routes.Frame)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}
	for pattern, h := range routes.Extra {
		mux.Handle(pattern, h)
	}
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start listens and serves in the background. Listen errors are returned
// directly; serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tLog.Infof("serving on http://%s", ln.Addr())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tLog.Errorf("server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, useful with port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}
