package peer

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/nulfwd/internal/forwarder"
	"github.com/loykin/nulfwd/internal/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, mutate func(*Config)) (*Server, <-chan error) {
	t.Helper()
	var cfg Config
	cfg.Default()
	cfg.SocketPath = filepath.Join(t.TempDir(), "echo.sock")
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background()) }()
	t.Cleanup(s.Stop)
	return s, errCh
}

func TestServer_EchoesWithPrefix(t *testing.T) {
	s, _ := startServer(t, nil)

	conn, err := net.Dial("unix", s.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	r := frame.NewReader(conn, 0)
	for _, msg := range []string{"hello\n", "second"} {
		_, err := frame.Write(conn, msg)
		require.NoError(t, err)
		payload, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, "ECHO: "+msg, string(payload))
	}
}

func TestServer_SentinelClosesConnection(t *testing.T) {
	s, _ := startServer(t, nil)

	conn, err := net.Dial("unix", s.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = frame.Write(conn, ".\n")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = frame.NewReader(conn, 0).ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_ExitOnSentinelStopsServing(t *testing.T) {
	s, errCh := startServer(t, func(c *Config) { c.ExitOnSentinel = true })

	conn, err := net.Dial("unix", s.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = frame.Write(conn, ".bye\n")
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after sentinel")
	}
	_, statErr := os.Stat(s.Addr())
	assert.True(t, os.IsNotExist(statErr), "socket file should be removed")
}

func TestServer_ContextCancelStops(t *testing.T) {
	var cfg Config
	cfg.Default()
	cfg.SocketPath = filepath.Join(t.TempDir(), "ctx.sock")
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	// An idle client must not keep the server alive.
	conn, err := net.Dial("unix", s.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNew_ReplacesStaleSocketOnly(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.sock")
	ln, err := net.Listen("unix", stale)
	require.NoError(t, err)
	// Closing a unix listener unlinks its file; recreate a dangling socket.
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	require.NoError(t, ln.Close())

	var cfg Config
	cfg.Default()
	cfg.SocketPath = stale
	s, err := New(cfg)
	require.NoError(t, err)
	s.Stop()

	regular := filepath.Join(dir, "regular.txt")
	require.NoError(t, os.WriteFile(regular, []byte("keep"), 0o644))
	cfg.SocketPath = regular
	_, err = New(cfg)
	require.Error(t, err)
	data, _ := os.ReadFile(regular)
	assert.Equal(t, "keep", string(data))
}

func TestServer_WithForwarder(t *testing.T) {
	s, _ := startServer(t, nil)

	var fcfg forwarder.Config
	fcfg.Default()
	fcfg.SocketPath = s.Addr()
	f, err := forwarder.Open(context.Background(), fcfg)
	require.NoError(t, err)

	var out bytes.Buffer
	err = f.Run(context.Background(), strings.NewReader("hi\nthere\n.\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "ECHO: hi\n\nECHO: there\n\n", out.String())
}

func TestServer_OversizedFrameDropsConnection(t *testing.T) {
	s, _ := startServer(t, func(c *Config) { c.MaxFrameSize = 8 })

	var fcfg forwarder.Config
	fcfg.Default()
	fcfg.SocketPath = s.Addr()
	f, err := forwarder.Open(context.Background(), fcfg)
	require.NoError(t, err)

	err = f.Run(context.Background(), strings.NewReader(strings.Repeat("z", 64)+"\n"), &bytes.Buffer{})
	var opErr *forwarder.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, forwarder.OpReceive, opErr.Op)
}
