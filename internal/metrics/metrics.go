package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Name:      "frames_sent_total",
		Help:      "Total number of frames written to the peer, sentinel included.",
	})
	framesReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Name:      "frames_received_total",
		Help:      "Total number of response frames read from the peer.",
	})
	bytesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Name:      "bytes_sent_total",
		Help:      "Total number of bytes written to the peer, terminators included.",
	})
	bytesReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Name:      "bytes_received_total",
		Help:      "Total number of payload bytes read from the peer (excludes terminators).",
	})
	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Name:      "errors_total",
		Help:      "Total number of fatal I/O errors by operation.",
	}, []string{"op"})
	roundtripDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nulfwd",
		Name:      "roundtrip_duration_seconds",
		Help:      "Time between sending a frame and receiving its response.",
		Buckets:   prometheus.DefBuckets,
	})
	peerConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Subsystem: "peer",
		Name:      "connections_total",
		Help:      "Total number of connections accepted by the echo peer.",
	})
	peerFramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nulfwd",
		Subsystem: "peer",
		Name:      "frames_total",
		Help:      "Total number of frames handled by the echo peer.",
	}, []string{"kind"})
)

// Register registers all nulfwd metrics to the provided Prometheus registerer.
// It is safe to call multiple times; AlreadyRegisteredError will be ignored.
func Register(r prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		framesSentTotal, framesReceivedTotal, bytesSentTotal, bytesReceivedTotal,
		errorsTotal, roundtripDuration, peerConnectionsTotal, peerFramesTotal,
	}
	collectors = append(collectors, sinkCollectors()...)
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var alreadyRegisteredError prometheus.AlreadyRegisteredError
			if errors.As(err, &alreadyRegisteredError) {
				continue
			}
			return err
		}
	}
	return nil
}

// FrameSent records one frame of n bytes written to the peer.
func FrameSent(n int) {
	framesSentTotal.Inc()
	if n > 0 {
		bytesSentTotal.Add(float64(n))
	}
}

// FrameReceived records one response frame and the time it took to arrive.
func FrameReceived(n int, rtt time.Duration) {
	framesReceivedTotal.Inc()
	if n > 0 {
		bytesReceivedTotal.Add(float64(n))
	}
	roundtripDuration.Observe(rtt.Seconds())
}

// IncErrors increments the error counter for op.
func IncErrors(op string) {
	if op == "" {
		op = "unknown"
	}
	errorsTotal.WithLabelValues(op).Inc()
}

func IncPeerConnections() { peerConnectionsTotal.Inc() }

// IncPeerFrames counts a frame handled by the peer; kind is "echo" or "sentinel".
func IncPeerFrames(kind string) { peerFramesTotal.WithLabelValues(kind).Inc() }
