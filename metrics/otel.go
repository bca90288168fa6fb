package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Channel-3-Eugene/streamworker"

// Meter returns the streamworker meter from the global MeterProvider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// RegisterObservers exports m through meter as observable instruments. The
// returned registration stops the export when unregistered.
func RegisterObservers(meter metric.Meter, m *Metrics) (metric.Registration, error) {
	published, err := meter.Int64ObservableCounter("streamworker.events.published",
		metric.WithDescription("Events accepted from workers."))
	if err != nil {
		return nil, err
	}
	delivered, err := meter.Int64ObservableCounter("streamworker.events.delivered",
		metric.WithDescription("Events handed to subscribers."))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64ObservableCounter("streamworker.events.dropped",
		metric.WithDescription("Events discarded by an overflow or delivery error policy."))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64ObservableCounter("streamworker.handles.failed",
		metric.WithDescription("Handles that ended in the failed state."))
	if err != nil {
		return nil, err
	}
	rate, err := meter.Int64ObservableGauge("streamworker.events.rate",
		metric.WithDescription("Deliveries per second over the last interval."))
	if err != nil {
		return nil, err
	}
	depth, err := meter.Int64ObservableGauge("streamworker.queue.depth",
		metric.WithDescription("Average delivery batch size over the last interval."))
	if err != nil {
		return nil, err
	}
	p99, err := meter.Float64ObservableGauge("streamworker.delivery.latency.p99",
		metric.WithDescription("99th percentile publish to delivery latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(published, int64(m.Published()))
		o.ObserveInt64(delivered, int64(m.Delivered()))
		o.ObserveInt64(dropped, int64(m.Dropped()))
		o.ObserveInt64(failures, int64(m.Errors()))
		o.ObserveInt64(rate, int64(m.GetEventRate()))
		o.ObserveInt64(depth, int64(m.GetAvgDepth()))
		o.ObserveFloat64(p99, m.Quantile(0.99).Seconds())
		return nil
	}, published, delivered, dropped, failures, rate, depth, p99)
}
