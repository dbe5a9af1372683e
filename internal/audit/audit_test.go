package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/hydrosync/internal/identity"
)

func TestSerializeToMessage(t *testing.T) {
	entry := Entry{
		ID:       "a1b2",
		Type:     TypeStationSynced,
		Station:  identity.NewKey("environment_canada", "08GA072"),
		Message:  "wrote 12 daily means",
		Severity: SeverityInfo,
	}

	msg, err := serializeToMessage(entry)
	require.NoError(t, err)

	assert.Equal(t, []byte("environment_canada_08GA072"), msg.Key)
	assert.Contains(t, string(msg.Value), `"type":"station_synced"`)
	assert.Contains(t, string(msg.Value), `"message":"wrote 12 daily means"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(TypeStationSynced), msg.Headers[0].Value)
	assert.Equal(t, "severity", msg.Headers[1].Key)
	assert.Equal(t, []byte(SeverityInfo), msg.Headers[1].Value)
}

func TestRecorderDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRecorder(nil, "audit", logger)

	// Must not panic or block when no brokers are configured.
	r.Record(context.Background(), TypeRunStarted, "", SeverityInfo, "run %d", 1)
	assert.NoError(t, r.Close())
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), TypeRunStarted, "", SeverityInfo, "noop")
	assert.NoError(t, r.Close())
}
