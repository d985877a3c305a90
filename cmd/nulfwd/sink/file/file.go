package file

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
)

// Sink appends transcript records to a text file, one record per line:
//
//	<RFC3339Nano time> <session> <seq> <direction> <quoted payload>
type Sink struct {
	batcher *common.Batcher
	f       *os.File
}

// New opens path for appending and starts the sink.
func New(path string, opts common.Options) (common.Sink, error) {
	if path == "" {
		return nil, errors.New("file sink requires a path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink open failed: %w", err)
	}
	s := &Sink{batcher: common.NewBatcher("file", opts), f: f}
	s.batcher.Start(s.flush)
	return s, nil
}

func (s *Sink) flush(recs []common.Record) error {
	w := bufio.NewWriter(s.f)
	for _, r := range recs {
		if _, err := fmt.Fprintln(w, FormatRecord(r)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// FormatRecord renders r the way the file sink writes it. The payload is
// quoted so that embedded newlines stay on one line.
func FormatRecord(r common.Record) string {
	return r.Time.UTC().Format(time.RFC3339Nano) + " " + r.Session + " " +
		strconv.Itoa(r.Seq) + " " + r.Direction + " " + strconv.Quote(r.Payload)
}

func (s *Sink) Enqueue(rec common.Record) { s.batcher.Enqueue(rec) }

func (s *Sink) Stop() error {
	s.batcher.Stop()
	return s.f.Close()
}
