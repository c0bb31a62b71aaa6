// Package telemetry wires OpenTelemetry tracing and metrics for the ledger
// and its workflows.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics exporter settings.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // default 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider owns the SDK meter provider. With metrics disabled it hands
// out meters from the global (no-op) provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	config   MetricsConfig
}

// NewMeterProvider builds an OTLP/gRPC meter provider and installs it
// globally.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig) (*MeterProvider, error) {
	mp := &MeterProvider{config: cfg}
	if !cfg.Enabled {
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metrics exporter: %w", err)
	}
	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)
	return mp, nil
}

// Meter returns a named meter.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether an exporter is running.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

// Shutdown flushes pending metrics, waiting at most ten seconds.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}

// Counter wraps a monotonically increasing int64 instrument.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter registers a counter on meter.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by value.
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by one.
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram wraps a float64 distribution.
type Histogram struct {
	histogram metric.Float64Histogram
}

// HistogramOpts configures NewHistogram.
type HistogramOpts struct {
	Name        string
	Description string
	Unit        string
	Boundaries  []float64
}

// NewHistogram registers a histogram on meter.
func NewHistogram(meter metric.Meter, opts HistogramOpts) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(opts.Boundaries) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(opts.Boundaries...))
	}
	h, err := meter.Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, fmt.Errorf("create histogram %s: %w", opts.Name, err)
	}
	return &Histogram{histogram: h}, nil
}

// Record adds one observation.
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Gauge records point-in-time values.
type Gauge struct {
	gauge metric.Float64Gauge
}

// NewGauge registers a gauge on meter.
func NewGauge(meter metric.Meter, name, description, unit string) (*Gauge, error) {
	g, err := meter.Float64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", name, err)
	}
	return &Gauge{gauge: g}, nil
}

// Record sets the current value.
func (g *Gauge) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	g.gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Metric attribute keys.
var (
	AttrTenantID     = attribute.Key("tenant_id")
	AttrLocationID   = attribute.Key("location_id")
	AttrProductID    = attribute.Key("product_id")
	AttrMovementKind = attribute.Key("movement_kind")
	AttrPolicy       = attribute.Key("policy")
	AttrOutcome      = attribute.Key("outcome")
	AttrWorkflow     = attribute.Key("workflow")
	AttrDBOperation  = attribute.Key("db.operation")
	AttrDBTable      = attribute.Key("db.table")
	AttrHTTPMethod   = attribute.Key("http.method")
	AttrHTTPRoute    = attribute.Key("http.route")
	AttrHTTPStatus   = attribute.Key("http.status_code")
)

// Histogram bucket boundaries in seconds.
var (
	DBDurationBuckets    = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	SmallDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}
	LockWaitBuckets      = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	HTTPDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)
