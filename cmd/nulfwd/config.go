package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/clickhouse"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/file"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/opensearch"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/sqlite"
	"github.com/loykin/nulfwd/internal/forwarder"
	"github.com/loykin/nulfwd/internal/peer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SinkConfig selects the transcript sink and its batching/filtering options.
type SinkConfig struct {
	Type          string            `mapstructure:"type"`       // "" (disabled), "file", "sqlite", "clickhouse", "opensearch"
	Directions    []string          `mapstructure:"directions"` // subset of "sent", "received"; empty means both
	Include       []string          `mapstructure:"include"`
	Exclude       []string          `mapstructure:"exclude"`
	BatchSize     int               `mapstructure:"batch-size"`
	BatchInterval time.Duration     `mapstructure:"batch-interval"`
	Host          string            `mapstructure:"host"`   // override host; default os.Hostname()
	Labels        map[string]string `mapstructure:"labels"` // optional key-value labels

	File       file.Config       `mapstructure:"file"`
	SQLite     sqlite.Config     `mapstructure:"sqlite"`
	ClickHouse clickhouse.Config `mapstructure:"clickhouse"`
	OpenSearch opensearch.Config `mapstructure:"opensearch"`
}

// LogConfig controls slog output. With File set, logs go to a rotating file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max-size"` // megabytes
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAge     int    `mapstructure:"max-age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// PrometheusConfig holds metrics endpoint options.
type PrometheusConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// Config holds all configuration options for the nulfwd application.
// Forwarder options live at the top level (socket, sentinel, ...); the echo
// peer used by "nulfwd serve" is nested under serve.
type Config struct {
	// Optional config file path (flag/env only)
	ConfigFile string `mapstructure:"config"`

	Forwarder  forwarder.Config `mapstructure:",squash"`
	Serve      peer.Config      `mapstructure:"serve"`
	Log        LogConfig        `mapstructure:"log"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// serveFlagKeys maps serve subcommand flags onto their nested config keys.
var serveFlagKeys = map[string]string{
	"serve.prefix":           "prefix",
	"serve.max-frame-size":   "max-frame-size",
	"serve.exit-on-sentinel": "exit-on-sentinel",
}

// LoadFromViper binds flags to viper, reads file/env, and populates the Config fields via mapstructure.
// Precedence: flags > environment (NULFWD_*) > config file > defaults.
func (c *Config) LoadFromViper(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("NULFWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Sink keys have no flags; register defaults so env overrides are seen by Unmarshal.
	c.sinkDefaults(v)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	for key, name := range serveFlagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && cmd.Name() == "serve" {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	// Determine config file path: --config flag or NULFWD_CONFIG env; no auto-defaults
	if c.ConfigFile == "" {
		c.ConfigFile = v.GetString("config")
	}
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return err
	}
	return c.applyEnvLabels()
}

// labelsEnv sets transcript labels as "k=v,k2=v2". viper cannot look up a map
// key in the environment, so it is parsed here and merged over file labels.
const labelsEnv = "NULFWD_SINK_LABELS"

func (c *Config) applyEnvLabels() error {
	raw, ok := os.LookupEnv(labelsEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	labels, err := parseLabels(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", labelsEnv, err)
	}
	if c.Sink.Labels == nil {
		c.Sink.Labels = map[string]string{}
	}
	for k, v := range labels {
		c.Sink.Labels[k] = v
	}
	return nil
}

func parseLabels(raw string) (map[string]string, error) {
	labels := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid label %q, want key=value", pair)
		}
		labels[k] = strings.TrimSpace(v)
	}
	return labels, nil
}

func (c *Config) sinkDefaults(v *viper.Viper) {
	v.SetDefault("sink.type", c.Sink.Type)
	v.SetDefault("sink.directions", c.Sink.Directions)
	v.SetDefault("sink.include", c.Sink.Include)
	v.SetDefault("sink.exclude", c.Sink.Exclude)
	v.SetDefault("sink.batch-size", c.Sink.BatchSize)
	v.SetDefault("sink.batch-interval", c.Sink.BatchInterval)
	v.SetDefault("sink.host", c.Sink.Host)
	v.SetDefault("sink.file.path", c.Sink.File.Path)
	v.SetDefault("sink.sqlite.path", c.Sink.SQLite.Path)
	v.SetDefault("sink.clickhouse.addr", c.Sink.ClickHouse.Addr)
	v.SetDefault("sink.clickhouse.database", c.Sink.ClickHouse.Database)
	v.SetDefault("sink.clickhouse.table", c.Sink.ClickHouse.Table)
	v.SetDefault("sink.clickhouse.user", c.Sink.ClickHouse.User)
	v.SetDefault("sink.clickhouse.password", c.Sink.ClickHouse.Password)
	v.SetDefault("sink.opensearch.url", c.Sink.OpenSearch.URL)
	v.SetDefault("sink.opensearch.index", c.Sink.OpenSearch.Index)
	v.SetDefault("sink.opensearch.daily-index", c.Sink.OpenSearch.DailyIndex)
	v.SetDefault("sink.opensearch.user", c.Sink.OpenSearch.User)
	v.SetDefault("sink.opensearch.password", c.Sink.OpenSearch.Password)
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Sink: SinkConfig{
			Type:          "", // transcripts are off unless configured
			Directions:    []string{},
			Include:       []string{},
			Exclude:       []string{},
			BatchSize:     100,
			BatchInterval: 2 * time.Second,
			Labels:        map[string]string{},
		},
		Prometheus: PrometheusConfig{Enable: false, Addr: ":2112"},
	}
	cfg.Forwarder.Default()
	cfg.Serve.Default()
	return cfg
}

// SetupFlags adds the shared and forwarder flags to the root command.
func (c *Config) SetupFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Path to config file (yaml/json/toml)")
	pf.StringVarP(&c.Forwarder.SocketPath, "socket", "S", c.Forwarder.SocketPath, "Path of the unix socket to connect to (serve: to listen on)")
	pf.StringVar(&c.Forwarder.Sentinel, "sentinel", c.Forwarder.Sentinel, "Line prefix that ends the session after it is sent")

	pf.StringVar(&c.Log.Level, "log.level", c.Log.Level, "Log level (debug, info, warn, error)")
	pf.StringVar(&c.Log.File, "log.file", c.Log.File, "Write logs to this rotating file instead of stderr")
	pf.IntVar(&c.Log.MaxSize, "log.max-size", c.Log.MaxSize, "Maximum log file size in megabytes before rotation")
	pf.IntVar(&c.Log.MaxBackups, "log.max-backups", c.Log.MaxBackups, "Number of rotated log files to keep")

	pf.BoolVar(&c.Prometheus.Enable, "prometheus.enable", c.Prometheus.Enable, "Enable Prometheus metrics HTTP endpoint")
	pf.StringVar(&c.Prometheus.Addr, "prometheus.addr", c.Prometheus.Addr, "Prometheus metrics listen address (e.g., :2112)")

	f := cmd.Flags()
	f.IntVar(&c.Forwarder.MaxFrameSize, "max-frame-size", c.Forwarder.MaxFrameSize, "Largest accepted response in bytes (0 = unbounded)")
	f.DurationVar(&c.Forwarder.ReadTimeout, "read-timeout", c.Forwarder.ReadTimeout, "Give up waiting for a response after this long (0 = wait forever)")
	f.DurationVar(&c.Forwarder.WriteTimeout, "write-timeout", c.Forwarder.WriteTimeout, "Give up sending a frame after this long (0 = no limit)")
	f.DurationVar(&c.Forwarder.ConnectRetry, "connect-retry", c.Forwarder.ConnectRetry, "Keep retrying a missing or refusing socket for this long (0 = single attempt)")
	f.StringVar(&c.Forwarder.Prompt, "prompt", c.Forwarder.Prompt, "Prompt shown on stderr when stdin is a terminal (empty disables)")

	// Sink options are intentionally not exposed as command-line flags.
	// Configure transcripts via config file or environment variables
	// (NULFWD_SINK_TYPE, NULFWD_SINK_SQLITE_PATH, etc.).
}

// SetupServeFlags adds the echo peer flags to the serve subcommand.
func (c *Config) SetupServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.Serve.Prefix, "prefix", c.Serve.Prefix, "Text prepended to every echoed frame")
	f.IntVar(&c.Serve.MaxFrameSize, "max-frame-size", c.Serve.MaxFrameSize, "Largest accepted frame in bytes (0 = unbounded)")
	f.BoolVar(&c.Serve.ExitOnSentinel, "exit-on-sentinel", c.Serve.ExitOnSentinel, "Stop serving after the first sentinel frame")
}

// Validate checks the configuration used by the forwarder command.
func (c *Config) Validate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	switch c.Sink.Type {
	case "", "file", "sqlite", "clickhouse", "opensearch":
		// ok
	default:
		return fmt.Errorf("invalid sink.type: %s", c.Sink.Type)
	}
	if c.Sink.Type != "" {
		if c.Sink.BatchSize <= 0 {
			return fmt.Errorf("sink.batch-size must be > 0")
		}
		if c.Sink.BatchInterval <= 0 {
			return fmt.Errorf("sink.batch-interval must be > 0")
		}
		for _, d := range c.Sink.Directions {
			if d != forwarder.DirectionSent && d != forwarder.DirectionReceived {
				return fmt.Errorf("sink.directions: unknown direction %q", d)
			}
		}
		var err error
		switch c.Sink.Type {
		case "file":
			err = c.Sink.File.Validate()
		case "sqlite":
			err = c.Sink.SQLite.Validate()
		case "clickhouse":
			err = c.Sink.ClickHouse.Validate()
		case "opensearch":
			err = c.Sink.OpenSearch.Validate()
		}
		if err != nil {
			return err
		}
	}

	if err := c.Forwarder.Validate(); err != nil {
		return fmt.Errorf("invalid forwarder config: %w", err)
	}
	return nil
}

// ValidateServe checks the configuration used by the serve command.
func (c *Config) ValidateServe() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	pc := c.peerConfig()
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("invalid serve config: %w", err)
	}
	return nil
}

func (c *Config) validateCommon() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Prometheus.Enable && c.Prometheus.Addr == "" {
		return fmt.Errorf("prometheus.addr must be set when prometheus.enable is true")
	}
	return nil
}

// peerConfig fills the shared socket and sentinel into the serve options.
func (c *Config) peerConfig() peer.Config {
	pc := c.Serve
	pc.SocketPath = c.Forwarder.SocketPath
	pc.Sentinel = c.Forwarder.Sentinel
	return pc
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log.level %q: %w", s, err)
	}
	return level, nil
}
