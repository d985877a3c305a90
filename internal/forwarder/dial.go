package forwarder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// Dial connects to the unix socket at cfg.SocketPath.
//
// With ConnectRetry set, a missing socket file or a refused connection is
// retried with exponential backoff until ConnectRetry has elapsed. Any other
// error fails immediately.
func Dial(ctx context.Context, cfg Config) (net.Conn, error) {
	var d net.Dialer

	operation := func() (net.Conn, error) {
		conn, err := d.DialContext(ctx, "unix", cfg.SocketPath)
		if err == nil {
			return conn, nil
		}
		if cfg.ConnectRetry > 0 && isTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = cfg.ConnectRetry

	conn, err := backoff.RetryNotifyWithData(operation, backoff.WithContext(bo, ctx),
		func(err error, next time.Duration) {
			slog.Debug("connect failed, retrying", "socket", cfg.SocketPath, "next", next, "error", err)
		})
	if err != nil {
		return nil, &OpError{Op: OpConnect, Err: fmt.Errorf("%s: %w", cfg.SocketPath, err)}
	}
	slog.Debug("connected", "socket", cfg.SocketPath)
	return conn, nil
}

// isTransient reports errors caused by a peer that is not listening yet.
func isTransient(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ECONNREFUSED)
}
