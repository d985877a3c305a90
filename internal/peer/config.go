package peer

import (
	"errors"
	"strings"

	"github.com/loykin/nulfwd/internal/frame"
)

const (
	DefaultPrefix       = "ECHO: "
	DefaultMaxFrameSize = 256
)

type Config struct {
	SocketPath     string `mapstructure:"socket"`
	Prefix         string `mapstructure:"prefix"`
	Sentinel       string `mapstructure:"sentinel"`
	MaxFrameSize   int    `mapstructure:"max-frame-size"`
	ExitOnSentinel bool   `mapstructure:"exit-on-sentinel"`
}

func (c *Config) Default() {
	c.Prefix = DefaultPrefix
	c.Sentinel = "."
	c.MaxFrameSize = DefaultMaxFrameSize
	c.ExitOnSentinel = false
}

func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return errors.New("socket path must be set")
	}
	if c.Sentinel == "" {
		return errors.New("sentinel must not be empty")
	}
	if strings.IndexByte(c.Prefix, frame.Terminator) >= 0 {
		return errors.New("prefix must not contain the frame terminator")
	}
	if c.MaxFrameSize < 0 {
		return errors.New("max-frame-size must be >= 0")
	}
	return nil
}
