// Package audit publishes ingestion lifecycle events to a Kafka topic so
// downstream consumers can track sync runs, registrations, and failures
// without scraping logs.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/google/uuid"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
)

// Event types emitted by the engine.
const (
	TypeRunStarted        = "run_started"
	TypeRunCompleted      = "run_completed"
	TypeStationSynced     = "station_synced"
	TypeStationFailed     = "station_failed"
	TypeStationRegistered = "station_registered"
	TypeStationRemoved    = "station_removed"
)

// Severities carried on each entry.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warning"
	SeverityError = "error"
)

// Entry is one audit record.
type Entry struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Station   identity.Key `json:"station,omitempty"`
	Message   string       `json:"message"`
	Severity  string       `json:"severity"`
	Timestamp time.Time    `json:"timestamp"`
}

// Recorder publishes audit entries to Kafka.
type Recorder struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRecorder creates a Kafka producer for the audit topic. Pass an empty
// broker list to disable auditing; Record becomes a no-op.
func NewRecorder(brokers []string, topic string, logger *slog.Logger) *Recorder {
	if len(brokers) == 0 {
		return &Recorder{logger: logger}
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &Recorder{writer: w, logger: logger}
}

// Record publishes one entry. Audit failures are logged, never propagated;
// ingestion must not fail because the audit stream is down.
func (r *Recorder) Record(ctx context.Context, eventType string, station identity.Key, severity, format string, args ...any) {
	if r == nil || r.writer == nil {
		return
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Type:      eventType,
		Station:   station,
		Message:   fmt.Sprintf(format, args...),
		Severity:  severity,
		Timestamp: domain.Now(),
	}

	msg, err := serializeToMessage(entry)
	if err != nil {
		r.logger.Error("serialize audit entry", "type", eventType, "error", err)
		return
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.logger.Error("publish audit entry", "type", eventType, "error", err)
	}
}

// Close flushes and closes the underlying producer.
func (r *Recorder) Close() error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

func serializeToMessage(entry Entry) (kafkago.Message, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit entry: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(entry.Station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(entry.Type)},
			{Key: "severity", Value: []byte(entry.Severity)},
		},
	}, nil
}
