package common

import (
	"sync"
	"testing"
	"time"
)

func drain(ch <-chan Record, max int, timeout time.Duration) []Record {
	out := []Record{}
	deadline := time.After(timeout)
	for len(out) < max {
		select {
		case r := <-ch:
			out = append(out, r)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestBatcher_Enqueue_FilterAndBuffer(t *testing.T) {
	b := NewBatcher("test", Options{BatchSize: 10, BatchInterval: 10 * time.Millisecond, Include: []string{"ok"}, Exclude: []string{"drop"}})
	b.Enqueue(rec("sent", "ok-first"))        // contains include
	b.Enqueue(rec("sent", "no-include-here")) // should be filtered
	b.Enqueue(rec("sent", "ok-but-drop-tag")) // contains include and exclude -> exclude wins

	got := drain(b.Ch, 3, 20*time.Millisecond)
	if len(got) != 1 || got[0].Payload != "ok-first" {
		t.Fatalf("expected only the allowed record to be in channel, got %+v", got)
	}
}

func TestBatcher_BufferFullDrops(t *testing.T) {
	// BatchSize=1 => channel capacity = size*2 = 2
	b := NewBatcher("test", Options{BatchSize: 1, BatchInterval: 10 * time.Millisecond})
	b.Enqueue(rec("sent", "a"))
	b.Enqueue(rec("sent", "b"))
	// This third enqueue should hit default case and be dropped
	b.Enqueue(rec("sent", "c"))

	got := drain(b.Ch, 10, 20*time.Millisecond)
	if len(got) != 2 {
		t.Fatalf("expected 2 items in buffer, got %d: %+v", len(got), got)
	}
	if got[0].Payload != "a" || got[1].Payload != "b" {
		t.Fatalf("unexpected channel content: %+v", got)
	}
}

type collect struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *collect) flush(recs []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := make([]string, 0, len(recs))
	for _, r := range recs {
		batch = append(batch, r.Payload)
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *collect) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.batches...)
}

func TestBatcher_FlushOnBatchSize(t *testing.T) {
	var c collect
	b := NewBatcher("test", Options{BatchSize: 2, BatchInterval: time.Hour})
	b.Start(c.flush)
	defer b.Stop()

	b.Enqueue(rec("sent", "one"))
	b.Enqueue(rec("received", "two"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(c.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	got := c.snapshot()
	if len(got) != 1 || len(got[0]) != 2 || got[0][0] != "one" || got[0][1] != "two" {
		t.Fatalf("unexpected batches: %+v", got)
	}
}

func TestBatcher_StopFlushesQueued(t *testing.T) {
	var c collect
	b := NewBatcher("test", Options{BatchSize: 100, BatchInterval: time.Hour})
	b.Start(c.flush)

	b.Enqueue(rec("sent", "only-one"))
	b.Stop()
	b.Stop() // idempotent

	got := c.snapshot()
	if len(got) != 1 || len(got[0]) != 1 || got[0][0] != "only-one" {
		t.Fatalf("unexpected batches after stop: %+v", got)
	}
}
