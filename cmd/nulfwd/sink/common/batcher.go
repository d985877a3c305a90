package common

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/nulfwd/internal/metrics"
)

// Options configures batching and filtering shared by every sink.
type Options struct {
	BatchSize     int
	BatchInterval time.Duration
	Directions    []string
	Include       []string
	Exclude       []string
}

// Batcher provides buffering, timing, and stop coordination for sinks.
type Batcher struct {
	Name          string
	Ch            chan Record
	BatchSize     int
	BatchInterval time.Duration
	filter        *filter
	Wg            sync.WaitGroup
	StopOnce      sync.Once
	StopCh        chan struct{}
}

func NewBatcher(name string, opts Options) *Batcher {
	return &Batcher{
		Name:          name,
		Ch:            make(chan Record, opts.BatchSize*2),
		BatchSize:     opts.BatchSize,
		BatchInterval: opts.BatchInterval,
		filter:        &filter{directions: opts.Directions, includes: opts.Include, excludes: opts.Exclude},
		StopCh:        make(chan struct{}),
	}
}

func (b *Batcher) Enqueue(rec Record) {
	if !b.filter.allow(rec) {
		metrics.SinkDropped(b.Name, "filtered")
		return
	}
	select {
	case b.Ch <- rec:
		metrics.SinkEnqueued(b.Name)
	default:
		// buffer full, drop with a warning to avoid blocking the session
		metrics.SinkDropped(b.Name, "buffer_full")
		slog.Warn("sink buffer full; dropping record", "sink", b.Name, "seq", rec.Seq)
	}
}

// Start runs the batching loop in a goroutine. flush is called with a
// non-empty batch when it reaches BatchSize, on every tick, and on Stop.
// Records already queued when Stop is called are flushed too.
func (b *Batcher) Start(flush func([]Record) error) {
	b.Wg.Add(1)
	go func() {
		defer b.Wg.Done()
		buf := make([]Record, 0, b.BatchSize)
		ticker := time.NewTicker(b.BatchInterval)
		defer ticker.Stop()
		doFlush := func() {
			if len(buf) == 0 {
				return
			}
			start := time.Now()
			err := flush(buf)
			metrics.SinkFlushObserve(b.Name, len(buf), time.Since(start), err == nil)
			if err != nil {
				slog.Error("sink flush failed", "sink", b.Name, "records", len(buf), "error", err)
			}
			buf = buf[:0]
		}
		for {
			select {
			case <-b.StopCh:
			drain:
				for {
					select {
					case rec := <-b.Ch:
						buf = append(buf, rec)
					default:
						break drain
					}
				}
				doFlush()
				return
			case <-ticker.C:
				doFlush()
			case rec := <-b.Ch:
				buf = append(buf, rec)
				if len(buf) >= b.BatchSize {
					doFlush()
				}
			}
		}
	}()
}

// Stop signals the loop to drain and flush, then waits for it.
func (b *Batcher) Stop() {
	b.StopOnce.Do(func() { close(b.StopCh) })
	b.Wg.Wait()
}
