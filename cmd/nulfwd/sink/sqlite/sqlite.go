package sqlite

import (
	"errors"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
	"github.com/loykin/nulfwd/internal/store"
)

// Config holds sqlite transcript sink options.
type Config struct {
	Path string `mapstructure:"path"`
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("sink.sqlite.path must be set when sink.type is 'sqlite'")
	}
	return nil
}

// Sink writes transcript batches to a local SQLite database.
type Sink struct {
	batcher *common.Batcher
	store   store.Store
}

func New(path string, opts common.Options) (common.Sink, error) {
	if path == "" {
		return nil, errors.New("sqlite sink requires a path")
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	s := &Sink{batcher: common.NewBatcher("sqlite", opts), store: st}
	s.batcher.Start(s.flush)
	return s, nil
}

func (s *Sink) flush(recs []common.Record) error {
	rows := make([]store.Record, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, store.Record(r))
	}
	return s.store.Save(rows...)
}

func (s *Sink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *Sink) Stop() error {
	s.batcher.Stop()
	return s.store.Close()
}
