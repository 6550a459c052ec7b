package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	meter            metric.Meter
	queueDepthGauge  metric.Int64ObservableGauge
	statusCountGauge metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-outbox",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.depth",
		metric.WithDescription("Number of deliveries waiting for an attempt"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	oe.statusCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.status.count",
		metric.WithDescription("Number of deliveries by status"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeStatusCounts),
	)
	if err != nil {
		return fmt.Errorf("creating status count gauge: %w", err)
	}

	return nil
}

// observeQueueDepth is a callback that reports the queue depth
func (oe *OTelExporter) observeQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	depth, err := oe.collector.GetQueueDepth(ctx)
	if err != nil {
		return err
	}
	observer.Observe(depth)
	return nil
}

// observeStatusCounts is a callback that reports delivery counts by status
func (oe *OTelExporter) observeStatusCounts(ctx context.Context, observer metric.Int64Observer) error {
	statusCounts, err := oe.collector.GetStatusCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range statusCounts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("delivery.status", status),
		))
	}
	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
