// Package peer implements the NUL-framed echo endpoint that the forwarder
// talks to. Every frame is answered with Prefix + payload; a frame starting
// with the sentinel ends the connection without an answer.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/loykin/nulfwd/internal/frame"
	"github.com/loykin/nulfwd/internal/metrics"
)

type Server struct {
	cfg      Config
	listener net.Listener

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New removes a stale socket file at cfg.SocketPath and starts listening.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := removeStale(cfg.SocketPath); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
		stopCh:   make(chan struct{}),
	}, nil
}

// Addr returns the socket path the server listens on.
func (s *Server) Addr() string { return s.cfg.SocketPath }

// Serve accepts connections until ctx is cancelled, Stop is called, or a
// sentinel arrives with ExitOnSentinel set.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	slog.Info("peer listening", "socket", s.cfg.SocketPath)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				s.wg.Wait()
				return nil
			default:
			}
			s.Stop()
			s.wg.Wait()
			return err
		}
		metrics.IncPeerConnections()
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(conn)
		}()
	}
}

// Stop closes the listener and every open connection, then removes the
// socket file. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		_ = s.listener.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		_ = removeStale(s.cfg.SocketPath)
	})
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

func (s *Server) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	frames := frame.NewReader(conn, s.cfg.MaxFrameSize)

	for {
		payload, err := frames.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Debug("client disconnected")
				return
			}
			select {
			case <-s.stopCh:
			default:
				slog.Warn("reading frame failed", "error", err)
			}
			return
		}

		msg := string(payload)
		slog.Info("message received", "message", msg)
		if strings.HasPrefix(msg, s.cfg.Sentinel) {
			metrics.IncPeerFrames("sentinel")
			slog.Info("terminating")
			if s.cfg.ExitOnSentinel {
				go s.Stop()
			}
			return
		}

		metrics.IncPeerFrames("echo")
		slog.Debug("sending answer")
		if _, err := frame.Write(conn, s.cfg.Prefix+msg); err != nil {
			slog.Warn("writing answer failed", "error", err)
			return
		}
	}
}

// removeStale deletes a leftover socket file. Anything else at path is left
// alone and reported.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
