package main

import (
	"fmt"
	"os"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/clickhouse"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/file"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/opensearch"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/sqlite"
	"github.com/loykin/nulfwd/internal/forwarder"
)

// Sink is the common sink interface from subpackages.
type Sink = common.Sink

// buildSink constructs and starts a transcript sink based on Config. Returns nil when disabled.
func buildSink(cfg *Config) (Sink, error) {
	opts := common.Options{
		BatchSize:     cfg.Sink.BatchSize,
		BatchInterval: cfg.Sink.BatchInterval,
		Directions:    cfg.Sink.Directions,
		Include:       cfg.Sink.Include,
		Exclude:       cfg.Sink.Exclude,
	}
	switch cfg.Sink.Type {
	case "":
		return nil, nil
	case "file":
		return file.New(cfg.Sink.File.Path, opts)
	case "sqlite":
		return sqlite.New(cfg.Sink.SQLite.Path, opts)
	case "clickhouse":
		return clickhouse.New(cfg.Sink.ClickHouse, sinkHost(cfg), cfg.Sink.Labels, opts)
	case "opensearch":
		return opensearch.New(cfg.Sink.OpenSearch, sinkHost(cfg), cfg.Sink.Labels, opts)
	default:
		return nil, fmt.Errorf("unsupported sink: %s", cfg.Sink.Type)
	}
}

func sinkHost(cfg *Config) string {
	if cfg.Sink.Host != "" {
		return cfg.Sink.Host
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return ""
}

// transcriptHook adapts forwarder exchanges into sink records for one session.
func transcriptHook(s Sink, session string) func(forwarder.Exchange) {
	return func(e forwarder.Exchange) {
		s.Enqueue(common.Record{
			Session:   session,
			Seq:       e.Seq,
			Direction: e.Direction,
			Payload:   e.Payload,
			Time:      e.Time,
		})
	}
}
