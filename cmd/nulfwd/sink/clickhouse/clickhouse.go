package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
)

type Sink struct {
	batcher *common.Batcher
	conn    ch.Conn
	table   string
	host    string
	labels  map[string]string
}

// options builds client options for either an http(s):// URL or a native host:port.
func options(cfg Config) (*ch.Options, error) {
	auth := ch.Auth{Username: cfg.User, Password: cfg.Password, Database: cfg.Database}
	if !strings.Contains(cfg.Addr, "://") {
		return &ch.Options{Addr: []string{cfg.Addr}, Auth: auth}, nil
	}
	u, err := url.Parse(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid ch addr: %w", err)
	}
	opts := &ch.Options{Addr: []string{u.Host}, Protocol: ch.HTTP, Auth: auth}
	if u.Scheme == "https" {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func New(cfg Config, host string, labels map[string]string, opts common.Options) (common.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chOpts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runMigrations(ctx, chOpts, cfg.FullTable()); err != nil {
		return nil, err
	}
	conn, err := ch.Open(chOpts)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		batcher: common.NewBatcher("clickhouse", opts),
		conn:    conn,
		table:   cfg.FullTable(),
		host:    host,
		labels:  labels,
	}
	s.batcher.Start(s.flush)
	return s, nil
}

func (s *Sink) flush(recs []common.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table+" (ts, session, seq, direction, payload, host, labels)")
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := batch.Append(r.Time, r.Session, uint32(r.Seq), r.Direction, r.Payload, s.host, s.labels); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (s *Sink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *Sink) Stop() error {
	s.batcher.Stop()
	return s.conn.Close()
}
