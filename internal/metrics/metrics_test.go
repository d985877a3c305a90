package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestFrameCounters(t *testing.T) {
	sentBefore := testutil.ToFloat64(framesSentTotal)
	bytesBefore := testutil.ToFloat64(bytesSentTotal)
	recvBefore := testutil.ToFloat64(framesReceivedTotal)
	recvBytesBefore := testutil.ToFloat64(bytesReceivedTotal)

	FrameSent(7)
	FrameSent(0)
	FrameReceived(5, 10*time.Millisecond)

	assert.Equal(t, sentBefore+2, testutil.ToFloat64(framesSentTotal))
	assert.Equal(t, bytesBefore+7, testutil.ToFloat64(bytesSentTotal))
	assert.Equal(t, recvBefore+1, testutil.ToFloat64(framesReceivedTotal))
	assert.Equal(t, recvBytesBefore+5, testutil.ToFloat64(bytesReceivedTotal))
}

func TestIncErrors_DefaultsUnknown(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("unknown"))
	IncErrors("")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("unknown")))

	IncErrors("send")
	assert.GreaterOrEqual(t, testutil.ToFloat64(errorsTotal.WithLabelValues("send")), 1.0)
}

func TestPeerCounters(t *testing.T) {
	before := testutil.ToFloat64(peerFramesTotal.WithLabelValues("echo"))
	IncPeerFrames("echo")
	IncPeerConnections()
	assert.Equal(t, before+1, testutil.ToFloat64(peerFramesTotal.WithLabelValues("echo")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(peerConnectionsTotal), 1.0)
}
