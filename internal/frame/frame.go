// Package frame implements NUL-terminated framing over byte streams.
//
// A frame is the raw payload followed by a single Terminator byte. There is
// no length prefix and no escaping: payloads must not contain the terminator.
package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Terminator ends every frame on the wire, in both directions.
const Terminator byte = 0x00

// DefaultMaxSize bounds a single frame when the caller does not choose a limit.
const DefaultMaxSize = 64 * 1024

// Encode returns payload followed by the terminator.
func Encode(payload string) []byte {
	b := make([]byte, 0, len(payload)+1)
	b = append(b, payload...)
	return append(b, Terminator)
}

// Write encodes payload and writes the whole frame to w.
func Write(w io.Writer, payload string) (int, error) {
	b := Encode(payload)
	n, err := w.Write(b)
	if err != nil {
		if isTimeout(err) {
			return n, fmt.Errorf("%w: %w", ErrWriteTimeout, err)
		}
		return n, err
	}
	if n < len(b) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Reader splits a stream into frames. Bytes that follow a terminator stay
// buffered for the next call to ReadFrame.
type Reader struct {
	// MaxSize is the largest accepted payload; zero or less means unbounded.
	MaxSize int
	reader  *bufio.Reader
}

func NewReader(r io.Reader, maxSize int) *Reader {
	return &Reader{MaxSize: maxSize, reader: bufio.NewReader(r)}
}

// ReadFrame returns the next payload without its terminator.
//
// MaxSize is checked after every read from the underlying stream, so an
// oversized frame is rejected as soon as its bytes arrive, even if the peer
// then stalls. io.EOF is returned only when the stream ends on a frame
// boundary; a stream ending inside a frame yields ErrPeerClosed.
func (r *Reader) ReadFrame() ([]byte, error) {
	var buf []byte
	for {
		if r.reader.Buffered() == 0 {
			// Peek fills the buffer with a single read of the underlying stream.
			if _, err := r.reader.Peek(1); err != nil {
				return nil, r.readError(err, len(buf))
			}
		}
		chunk, _ := r.reader.Peek(r.reader.Buffered())
		if i := bytes.IndexByte(chunk, Terminator); i >= 0 {
			buf = append(buf, chunk[:i]...)
			_, _ = r.reader.Discard(i + 1)
			if r.MaxSize > 0 && len(buf) > r.MaxSize {
				return nil, &FrameTooLargeError{Limit: r.MaxSize, Size: len(buf)}
			}
			if buf == nil {
				buf = []byte{}
			}
			return buf, nil
		}
		buf = append(buf, chunk...)
		_, _ = r.reader.Discard(len(chunk))
		if r.MaxSize > 0 && len(buf) > r.MaxSize {
			return nil, &FrameTooLargeError{Limit: r.MaxSize, Size: len(buf)}
		}
	}
}

func (r *Reader) readError(err error, pending int) error {
	if errors.Is(err, io.EOF) {
		if pending == 0 {
			return io.EOF
		}
		return ErrPeerClosed
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", ErrReadTimeout, err)
	}
	return err
}

// Buffered reports how many bytes of following frames are already read from
// the underlying stream.
func (r *Reader) Buffered() int {
	return r.reader.Buffered()
}
