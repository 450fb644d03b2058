package outcome

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Operation names the asynchronous operation an event reports on.
type Operation string

const (
	// OpIngest is the completion of push message ingestion.
	OpIngest Operation = "ingest"
	// OpDecision is the completion of an approve/deny decision.
	OpDecision Operation = "decision"
	// OpTokenRegistration is the completion of device token registration.
	OpTokenRegistration Operation = "token_registration"
	// OpEnrollment is the completion of mechanism enrollment.
	OpEnrollment Operation = "enrollment"
)

// Event is one completed asynchronous result.
type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	Operation      Operation         `json:"operation"`
	NotificationID string            `json:"notification_id,omitempty"`
	MechanismUID   string            `json:"mechanism_uid,omitempty"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel for a single consumer.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
