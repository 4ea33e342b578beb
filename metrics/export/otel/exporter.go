package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/meowauth"
	"github.com/MrEthical07/meowauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies the numbers the exporter observes.
type Source interface {
	MetricsSnapshot() meowauth.MetricsSnapshot
	AuditDropped() uint64
}

type counter struct {
	id         meowauth.MetricID
	instrument metric.Int64ObservableCounter
}

type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counter
	buckets      metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
	bucketAttrs  [8]metric.ObserveOption
}

func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make([]counter, 0, len(internaldefs.Counters)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.Counters)+3)

	for _, def := range internaldefs.Counters {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	lat := internaldefs.AuthorizeLatency
	var err error
	if e.buckets, err = meter.Int64ObservableGauge(lat.Name+"_bucket",
		metric.WithDescription(lat.Help+" Cumulative bucket counts."),
	); err != nil {
		return nil, fmt.Errorf("latency buckets: %w", err)
	}
	if e.count, err = meter.Int64ObservableGauge(lat.Name+"_count",
		metric.WithDescription(lat.Help+" Sample count."),
	); err != nil {
		return nil, fmt.Errorf("latency count: %w", err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDropped.Name,
		metric.WithDescription(internaldefs.AuditDropped.Help),
	); err != nil {
		return nil, fmt.Errorf("audit dropped: %w", err)
	}
	observables = append(observables, e.buckets, e.count, e.auditDropped)

	for i, le := range internaldefs.Bounds {
		e.bucketAttrs[i] = metric.WithAttributes(attribute.String("le", le))
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}
	if raw, ok := snap.Histograms[internaldefs.AuthorizeLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(internaldefs.Buckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(e.buckets, int64(v), e.bucketAttrs[i])
		}
		o.ObserveInt64(e.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay with the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
