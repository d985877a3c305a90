package forwarder

// Operation names reported in OpError.
const (
	OpConnect     = "connect"
	OpReadInput   = "read input"
	OpSend        = "send"
	OpReceive     = "receive"
	OpWriteOutput = "write output"
)

// OpError records which I/O call failed. Every OpError is fatal to Run.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }
