package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/nulfwd"
	"github.com/loykin/nulfwd/internal/forwarder"
	"github.com/loykin/nulfwd/internal/peer"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// interruptGrace bounds how long an interrupted session waits for Run to return.
const interruptGrace = 200 * time.Millisecond

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	config := DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "nulfwd",
		Short: "Forward stdin lines to a unix socket as NUL-terminated frames",
		Long: `nulfwd connects to a local unix socket, sends every line read from stdin
followed by a NUL byte, and prints the peer's answer (everything up to the next
NUL byte). A line starting with the sentinel (default ".") is sent as the final
message and ends the session without waiting for an answer. End of input ends
the session as well.

Examples:
  # Talk to a serial console exposed as a unix socket
  nulfwd --socket /run/vbox/com1.sock

  # Wait up to 10s for the socket to appear and bound each answer to 5s
  nulfwd --socket ./com1.sock --connect-retry 10s --read-timeout 5s

  # Run a local echo peer to try it out
  nulfwd serve --socket /tmp/echo.sock`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFromViper(cmd); err != nil {
				return err
			}
			return config.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForwarder(cmd.Context(), config, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	// Setup flags from config
	config.SetupFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(config))
	return rootCmd
}

func newServeCommand(config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a NUL-framed echo peer on the socket",
		Long: `serve listens on --socket and answers every NUL-terminated frame with
the configured prefix followed by the frame's content. A frame starting with
the sentinel closes that connection without an answer.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFromViper(cmd); err != nil {
				return err
			}
			return config.ValidateServe()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(cmd.Context(), config, cmd.ErrOrStderr())
		},
	}
	config.SetupServeFlags(cmd)
	return cmd
}

// startMetrics starts the Prometheus endpoint when enabled; the returned stop
// function is always safe to call.
func startMetrics(cfg PrometheusConfig) (func() error, error) {
	if !cfg.Enable {
		return func() error { return nil }, nil
	}
	stop, err := nulfwd.StartMetrics(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start prometheus endpoint: %w", err)
	}
	slog.Info("metrics endpoint started", "addr", cfg.Addr)
	return stop, nil
}

func runForwarder(ctx context.Context, config *Config, in io.Reader, out, stderr io.Writer) error {
	restoreLog, err := setupLogging(config.Log, stderr)
	if err != nil {
		return err
	}
	defer restoreLog()

	stopMetrics, err := startMetrics(config.Prometheus)
	if err != nil {
		return err
	}
	defer func() { _ = stopMetrics() }()

	sink, err := buildSink(config)
	if err != nil {
		return fmt.Errorf("error creating sink: %w", err)
	}
	if sink != nil {
		defer func() { _ = sink.Stop() }()
	}

	session := uuid.NewString()
	cfg := config.Forwarder
	if sink != nil {
		cfg.OnExchange = transcriptHook(sink, session)
	}
	if isTerminal(in) {
		cfg.PromptOut = stderr
	}

	// SIGINT/SIGTERM cancel the session so deferred sink and log cleanup runs.
	// After the first signal the default handling is restored, so a second one
	// terminates the process.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	f, err := forwarder.Open(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Debug("session started", "session", session, "socket", cfg.SocketPath)

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, in, out) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	// Cancellation closes the connection, which ends Run unless it is blocked
	// reading input; that read cannot be interrupted and is abandoned.
	select {
	case err := <-done:
		return err
	case <-time.After(interruptGrace):
		slog.Debug("input read abandoned on interrupt", "session", session)
		return ctx.Err()
	}
}

func runPeer(ctx context.Context, config *Config, stderr io.Writer) error {
	restoreLog, err := setupLogging(config.Log, stderr)
	if err != nil {
		return err
	}
	defer restoreLog()

	stopMetrics, err := startMetrics(config.Prometheus)
	if err != nil {
		return err
	}
	defer func() { _ = stopMetrics() }()

	// Setup signal handling for graceful shutdown and socket cleanup
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := peer.New(config.peerConfig())
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
