package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
	osclient "github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchutil"
)

type Sink struct {
	batcher *common.Batcher
	client  *osclient.Client
	cfg     Config
	host    string
	labels  map[string]string
}

// document is the indexed shape of one transcript record.
type document struct {
	Timestamp string            `json:"@timestamp"`
	Session   string            `json:"session"`
	Seq       int               `json:"seq"`
	Direction string            `json:"direction"`
	Payload   string            `json:"payload"`
	Host      string            `json:"host"`
	Labels    map[string]string `json:"labels,omitempty"`
}

func New(cfg Config, host string, labels map[string]string, opts common.Options) (common.Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientCfg := osclient.Config{Addresses: []string{cfg.URL}}
	if cfg.User != "" {
		clientCfg.Username = cfg.User
		clientCfg.Password = cfg.Password
	}
	cli, err := osclient.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		batcher: common.NewBatcher("opensearch", opts),
		client:  cli,
		cfg:     cfg,
		host:    host,
		labels:  labels,
	}
	s.batcher.Start(s.flush)
	return s, nil
}

func (s *Sink) document(r common.Record) document {
	return document{
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Session:   r.Session,
		Seq:       r.Seq,
		Direction: r.Direction,
		Payload:   r.Payload,
		Host:      s.host,
		Labels:    s.labels,
	}
}

func (s *Sink) flush(recs []common.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: s.client,
		Index:  s.cfg.Index,
	})
	if err != nil {
		return err
	}
	for _, r := range recs {
		b, err := json.Marshal(s.document(r))
		if err != nil {
			return err
		}
		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Index:  s.cfg.IndexFor(r.Time),
			Body:   bytes.NewReader(b),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, resp opensearchutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					slog.Error("opensearch bulk item error", "error", err)
					return
				}
				slog.Error("opensearch bulk item failed", "status", resp.Status, "error", resp.Error)
			},
		})
		if err != nil {
			return err
		}
	}
	if err := bi.Close(ctx); err != nil {
		return err
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		return fmt.Errorf("opensearch bulk failed items: %d", stats.NumFailed)
	}
	return nil
}

func (s *Sink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *Sink) Stop() error {
	s.batcher.Stop()
	return nil
}
