package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/nulfwd/cmd/nulfwd/sink/common"
	"github.com/loykin/nulfwd/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSink_PersistsOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	s, err := New(path, common.Options{BatchSize: 50, BatchInterval: time.Hour})
	require.NoError(t, err)

	now := time.Now()
	s.Enqueue(common.Record{Session: "sess", Seq: 1, Direction: "sent", Payload: "hello\n", Time: now})
	s.Enqueue(common.Record{Session: "sess", Seq: 1, Direction: "received", Payload: "WORLD", Time: now})
	require.NoError(t, s.Stop())

	st, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	records, err := st.Load("sess")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "hello\n", records[0].Payload)
	assert.Equal(t, "WORLD", records[1].Payload)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, Config{Path: "x.db"}.Validate())
}
