// Package nulfwd provides a simplified, stable root-level API for external users.
//
// A Forwarder sends lines to a unix socket peer as NUL-terminated frames and
// prints each answer; a Peer is the matching echo endpoint:
//
//	import "github.com/loykin/nulfwd"
//
//	var cfg nulfwd.Config
//	cfg.Default()
//	cfg.SocketPath = "/run/app/com1.sock"
//	f, err := nulfwd.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	return f.Run(ctx, os.Stdin, os.Stdout)
package nulfwd

import (
	"context"
	"net"

	"github.com/loykin/nulfwd/internal/forwarder"
	"github.com/loykin/nulfwd/internal/frame"
	"github.com/loykin/nulfwd/internal/metrics"
	"github.com/loykin/nulfwd/internal/peer"
	pkgmetrics "github.com/loykin/nulfwd/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Config re-exports forwarder.Config. This is a type alias, so it's fully
// compatible with the underlying type.
type Config = forwarder.Config

// Forwarder re-exports forwarder.Forwarder.
type Forwarder = forwarder.Forwarder

// Exchange re-exports forwarder.Exchange, passed to Config.OnExchange.
type Exchange = forwarder.Exchange

// OpError re-exports forwarder.OpError.
type OpError = forwarder.OpError

// PeerConfig re-exports peer.Config.
type PeerConfig = peer.Config

// Peer re-exports peer.Server.
type Peer = peer.Server

// Frame errors re-exported for errors.Is checks.
var (
	ErrFrameTooLarge = frame.ErrFrameTooLarge
	ErrPeerClosed    = frame.ErrPeerClosed
	ErrReadTimeout   = frame.ErrReadTimeout
	ErrWriteTimeout  = frame.ErrWriteTimeout
)

// NewForwarder wraps an established connection; the Forwarder owns conn afterwards.
func NewForwarder(cfg Config, conn net.Conn) *Forwarder {
	return forwarder.New(cfg, conn)
}

// Dial connects to cfg.SocketPath, retrying for up to cfg.ConnectRetry while the
// socket is missing or refusing connections.
func Dial(ctx context.Context, cfg Config) (net.Conn, error) {
	return forwarder.Dial(ctx, cfg)
}

// Open dials cfg.SocketPath and returns a Forwarder owning the connection.
func Open(ctx context.Context, cfg Config) (*Forwarder, error) {
	return forwarder.Open(ctx, cfg)
}

// NewPeer starts listening on cfg.SocketPath. Call Serve to accept clients.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	return peer.New(cfg)
}

// StartMetrics registers nulfwd metrics on the default Prometheus registry and starts an HTTP server.
// It returns a stop function to gracefully shut down the metrics server.
func StartMetrics(addr string) (func() error, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}
	srv, err := pkgmetrics.Start(addr)
	if err != nil {
		return nil, err
	}
	return srv.Stop, nil
}
