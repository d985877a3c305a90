package common

import "time"

// Record is one transcript entry mirrored to a sink.
type Record struct {
	Session   string
	Seq       int
	Direction string // "sent" or "received"
	Payload   string
	Time      time.Time
}

// Sink specifies the minimal interface for a transcript backend.
type Sink interface {
	Enqueue(rec Record)
	Stop() error
}
