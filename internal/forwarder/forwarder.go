// Package forwarder sends stdin lines to a unix socket peer as NUL-terminated
// frames and prints the peer's answers.
package forwarder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/loykin/nulfwd/internal/frame"
	"github.com/loykin/nulfwd/internal/metrics"
)

// Forwarder owns a single connection for its whole lifetime.
type Forwarder struct {
	cfg    Config
	conn   net.Conn
	frames *frame.Reader
	seq    int

	closeOnce sync.Once
	closeErr  error
}

// New wraps an established connection. The Forwarder takes ownership of conn.
func New(cfg Config, conn net.Conn) *Forwarder {
	if cfg.Sentinel == "" {
		cfg.Sentinel = DefaultSentinel
	}
	return &Forwarder{
		cfg:    cfg,
		conn:   conn,
		frames: frame.NewReader(conn, cfg.MaxFrameSize),
	}
}

// Open dials cfg.SocketPath and returns a Forwarder owning the connection.
func Open(ctx context.Context, cfg Config) (*Forwarder, error) {
	conn, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, conn), nil
}

// Run forwards lines from in until a sentinel line is sent or in is exhausted.
//
// Every non-sentinel line is answered by exactly one response frame, which is
// written to out followed by a newline. A final line without a trailing
// newline is still forwarded; EOF with nothing pending ends the session
// cleanly. Run closes the connection before returning, on every path.
func (f *Forwarder) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() { _ = f.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer stop()

	lines := bufio.NewReader(in)
	w := bufio.NewWriter(out)

	for {
		f.prompt()
		line, err := lines.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return f.fail(ctx, OpReadInput, err)
		}
		if line == "" {
			// End the dangling prompt line the way a shell does on Ctrl-D.
			f.endPrompt()
			slog.Debug("input exhausted, closing session", "frames", f.seq)
			return nil
		}

		sent := time.Now()
		if err := f.send(line); err != nil {
			return f.fail(ctx, OpSend, err)
		}
		if f.IsSentinel(line) {
			slog.Debug("sentinel sent, closing session", "frames", f.seq)
			return nil
		}

		slog.Debug("message sent, waiting for answer", "seq", f.seq)
		resp, err := f.receive(sent)
		if err != nil {
			return f.fail(ctx, OpReceive, err)
		}
		if _, err := fmt.Fprintln(w, resp); err != nil {
			return f.fail(ctx, OpWriteOutput, err)
		}
		if err := w.Flush(); err != nil {
			return f.fail(ctx, OpWriteOutput, err)
		}
	}
}

// IsSentinel reports whether line ends the session. An empty line never does.
func (f *Forwarder) IsSentinel(line string) bool {
	return strings.HasPrefix(line, f.cfg.Sentinel)
}

// Close releases the connection. It is safe to call more than once.
func (f *Forwarder) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.conn.Close()
	})
	return f.closeErr
}

func (f *Forwarder) send(line string) error {
	if f.cfg.WriteTimeout > 0 {
		if err := f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	n, err := frame.Write(f.conn, line)
	if err != nil {
		return err
	}
	f.seq++
	metrics.FrameSent(n)
	f.notify(DirectionSent, line)
	return nil
}

func (f *Forwarder) receive(sent time.Time) (string, error) {
	if f.cfg.ReadTimeout > 0 {
		if err := f.conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
			return "", err
		}
	}
	payload, err := f.frames.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", frame.ErrPeerClosed
		}
		return "", err
	}
	metrics.FrameReceived(len(payload), time.Since(sent))
	resp := string(payload)
	f.notify(DirectionReceived, resp)
	return resp, nil
}

func (f *Forwarder) notify(direction, payload string) {
	if f.cfg.OnExchange == nil {
		return
	}
	f.cfg.OnExchange(Exchange{
		Seq:       f.seq,
		Direction: direction,
		Payload:   payload,
		Time:      time.Now(),
	})
}

func (f *Forwarder) prompt() {
	if f.cfg.PromptOut == nil || f.cfg.Prompt == "" {
		return
	}
	_, _ = io.WriteString(f.cfg.PromptOut, f.cfg.Prompt)
}

func (f *Forwarder) endPrompt() {
	if f.cfg.PromptOut == nil || f.cfg.Prompt == "" {
		return
	}
	_, _ = io.WriteString(f.cfg.PromptOut, "\n")
}

// fail reports a fatal error; cancellation takes precedence over the I/O
// error it caused.
func (f *Forwarder) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	metrics.IncErrors(op)
	return &OpError{Op: op, Err: err}
}
