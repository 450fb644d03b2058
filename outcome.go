package authvault

import (
	"io"

	"github.com/vportela/authvault/internal/outcome"
)

// Outcome is one completed asynchronous result delivered by the dispatcher.
type Outcome = outcome.Event

// OutcomeOperation names the operation an [Outcome] reports on.
type OutcomeOperation = outcome.Operation

const (
	// OutcomeIngest reports completion of push message ingestion.
	OutcomeIngest = outcome.OpIngest
	// OutcomeDecision reports completion of an approve/deny decision.
	OutcomeDecision = outcome.OpDecision
	// OutcomeTokenRegistration reports completion of device token registration.
	OutcomeTokenRegistration = outcome.OpTokenRegistration
	// OutcomeEnrollment reports completion of mechanism enrollment.
	OutcomeEnrollment = outcome.OpEnrollment
)

// OutcomeSink receives [Outcome] values from the dispatcher, one at a time,
// in completion order.
type OutcomeSink = outcome.Sink

// NoOpOutcomeSink silently discards all outcomes.
type NoOpOutcomeSink = outcome.NoOpSink

// OutcomeChannelSink is a buffered channel-based [OutcomeSink]. Install it
// through [Builder.WithOutcomeSink] and consume [OutcomeChannelSink.Events]
// from exactly one goroutine.
type OutcomeChannelSink = outcome.ChannelSink

// NewOutcomeChannelSink creates an [OutcomeChannelSink] with the given buffer
// capacity.
func NewOutcomeChannelSink(buffer int) *OutcomeChannelSink {
	return outcome.NewChannelSink(buffer)
}

// OutcomeJSONWriterSink writes JSON-encoded outcomes, one per line.
type OutcomeJSONWriterSink = outcome.JSONWriterSink

// NewOutcomeJSONWriterSink creates an [OutcomeJSONWriterSink] that writes to
// w.
func NewOutcomeJSONWriterSink(w io.Writer) *OutcomeJSONWriterSink {
	return outcome.NewJSONWriterSink(w)
}
