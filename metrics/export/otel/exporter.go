package otel

import (
	"context"
	"errors"
	"fmt"

	authvault "github.com/vportela/authvault"
	"github.com/vportela/authvault/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authvault.MetricsSnapshot
	OutcomesDropped() uint64
}

type observedCounter struct {
	id         authvault.MetricID
	instrument metric.Int64ObservableCounter
}

type OTelExporter struct {
	source          metricsSource
	registration    metric.Registration
	counters        []observedCounter
	outcomesDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers observable counters for every authvault metric on
// the given meter, sourced from the client.
func NewOTelExporter(meter metric.Meter, client *authvault.Client) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource is the injectable variant used by tests.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	dropped, err := meter.Int64ObservableCounter(
		"authvault_outcomes_dropped_total",
		metric.WithDescription("Dispatched results discarded because the buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create observable counter authvault_outcomes_dropped_total: %w", err)
	}
	exporter.outcomesDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register metrics callback: %w", err)
	}
	exporter.registration = registration

	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, counter := range e.counters {
		observer.ObserveInt64(counter.instrument, int64(snapshot.Counters[counter.id]))
	}
	observer.ObserveInt64(e.outcomesDropped, int64(e.source.OutcomesDropped()))
	return nil
}

// Unregister stops the collection callback.
func (e *OTelExporter) Unregister() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
