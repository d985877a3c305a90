package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sinkRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Subsystem: "sink",
		Name:      "records_total",
		Help:      "Transcript records offered to a sink, by outcome (enqueued, filtered, buffer_full).",
	}, []string{"sink", "outcome"})
	sinkFlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Subsystem: "sink",
		Name:      "flushes_total",
		Help:      "Sink flushes of at least one record, by result (ok, failed).",
	}, []string{"sink", "result"})
	sinkBatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nulfwd",
		Subsystem: "sink",
		Name:      "flush_batch_size",
		Help:      "Number of records per flush.",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"sink"})
	sinkFlushDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nulfwd",
		Subsystem: "sink",
		Name:      "flush_duration_seconds",
		Help:      "Duration of sink flush operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sink"})
)

func sinkCollectors() []prometheus.Collector {
	return []prometheus.Collector{sinkRecordsTotal, sinkFlushesTotal, sinkBatchSize, sinkFlushDuration}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// SinkEnqueued counts a record accepted into a sink buffer.
func SinkEnqueued(sink string) {
	sinkRecordsTotal.WithLabelValues(orUnknown(sink), "enqueued").Inc()
}

// SinkDropped counts a record rejected before enqueue; reason is "filtered" or "buffer_full".
func SinkDropped(sink, reason string) {
	sinkRecordsTotal.WithLabelValues(orUnknown(sink), orUnknown(reason)).Inc()
}

// SinkFlushObserve records one flush of size records.
func SinkFlushObserve(sink string, size int, dur time.Duration, success bool) {
	sink = orUnknown(sink)
	if size <= 0 {
		return
	}
	result := "ok"
	if !success {
		result = "failed"
	}
	sinkFlushesTotal.WithLabelValues(sink, result).Inc()
	sinkBatchSize.WithLabelValues(sink).Observe(float64(size))
	sinkFlushDuration.WithLabelValues(sink).Observe(dur.Seconds())
}
