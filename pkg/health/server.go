package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Server exposes a registry's readiness rollup over HTTP.
type Server struct {
	registry *Registry
	http     *http.Server
}

// NewServer builds a readiness HTTP server bound to host:port. It
// does not start listening until Start is called.
func NewServer(registry *Registry, host string, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{registry: registry}
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/healthz", s.handleReady)
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	readiness := s.registry.Ready()
	w.Header().Set("Content-Type", "application/json")
	if readiness.Status != "ready" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(readiness)
}

// Start runs the server until ctx is cancelled. It always returns a
// non-nil error, matching net/http.Server.ListenAndServe's contract.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
	return s.http.ListenAndServe()
}
