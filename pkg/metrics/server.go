package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an HTTP server exposing Prometheus metrics.
// Nothing starts automatically: call Start to run it and Stop to shut it down.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// Start listens on addr and serves the default Prometheus registry at /metrics.
// Bind errors are returned immediately rather than from the serving goroutine.
func Start(addr string) (*Server, error) {
	return StartWithGatherer(addr, prometheus.DefaultGatherer)
}

// StartWithGatherer is Start with an explicit gatherer, for isolated registries.
func StartWithGatherer(addr string, g prometheus.Gatherer) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", ln.Addr().String(), "error", err)
		}
	}()

	return &Server{server: srv, listener: ln}, nil
}

// Addr returns the bound listen address, useful when started on port 0.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the metrics server with a timeout.
func (s *Server) Stop() error {
	if s == nil || s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
