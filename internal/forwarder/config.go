package forwarder

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/loykin/nulfwd/internal/frame"
)

// DefaultSentinel marks the last line of a session.
const DefaultSentinel = "."

// Exchange describes one frame crossing the connection, in either direction.
type Exchange struct {
	Seq       int
	Direction string // DirectionSent or DirectionReceived
	Payload   string
	Time      time.Time
}

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

type Config struct {
	SocketPath   string        `mapstructure:"socket"`
	Sentinel     string        `mapstructure:"sentinel"`
	MaxFrameSize int           `mapstructure:"max-frame-size"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	ConnectRetry time.Duration `mapstructure:"connect-retry"`
	Prompt       string        `mapstructure:"prompt"`

	// PromptOut receives Prompt before each input line; nil disables prompting.
	PromptOut io.Writer `mapstructure:"-"`
	// OnExchange is called for every frame sent or received.
	OnExchange func(Exchange) `mapstructure:"-"`
}

func (c *Config) Default() {
	c.Sentinel = DefaultSentinel
	c.MaxFrameSize = frame.DefaultMaxSize
	c.ReadTimeout = 0
	c.WriteTimeout = 0
	c.ConnectRetry = 0
	c.Prompt = "> "
}

// Validate checks the forwarder options. The socket path has no default.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("socket path must be set (--socket or NULFWD_SOCKET)")
	}
	if c.Sentinel == "" {
		return errors.New("sentinel must not be empty")
	}
	if strings.IndexByte(c.Sentinel, frame.Terminator) >= 0 {
		return errors.New("sentinel must not contain the frame terminator")
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("max-frame-size must be >= 0, got %d", c.MaxFrameSize)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ConnectRetry < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
