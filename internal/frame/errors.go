package frame

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrFrameTooLarge is matched by FrameTooLargeError via errors.Is.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrPeerClosed is returned when the stream ends in the middle of a frame.
	ErrPeerClosed = errors.New("peer closed connection before frame terminator")
	// ErrReadTimeout wraps deadline errors raised while reading a frame.
	ErrReadTimeout = errors.New("read timed out")
	// ErrWriteTimeout wraps deadline errors raised while writing a frame.
	ErrWriteTimeout = errors.New("write timed out")
)

// FrameTooLargeError indicates that more than Limit bytes arrived without a terminator.
type FrameTooLargeError struct {
	Limit int
	Size  int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame too large: read %d bytes without terminator (limit %d)", e.Size, e.Limit)
}

func (e *FrameTooLargeError) Is(target error) bool {
	return target == ErrFrameTooLarge
}

// IsFrameTooLarge checks if an error is a FrameTooLargeError.
func IsFrameTooLarge(err error) bool {
	var e *FrameTooLargeError
	return errors.As(err, &e)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
