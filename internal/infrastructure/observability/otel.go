package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/zatekoja/medicheck"

// Metrics holds all application metrics
type Metrics struct {
	RequestCount       metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	DBQueryDuration    metric.Float64Histogram
	CacheHitCount      metric.Int64Counter
	CacheMissCount     metric.Int64Counter
	SyncPagesFetched   metric.Int64Counter
	SyncItemsFetched   metric.Int64Counter
	FacilitiesSaved    metric.Int64Counter
	FacilitiesUpdated  metric.Int64Counter
	NearbyTruncations  metric.Int64Counter
	SyncCeilingReached metric.Int64Counter
}

// Setup initializes OpenTelemetry tracing and metric export plus Go runtime
// instrumentation. The returned function flushes and stops both providers.
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes application metrics on the global meter provider.
// Without Setup the global provider is a no-op, so recording is always safe.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	var err error
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
		return h
	}

	m.RequestCount = counter("http.server.request.count", "Number of HTTP requests")
	m.RequestDuration = histogram("http.server.request.duration", "HTTP request duration in milliseconds")
	m.DBQueryDuration = histogram("db.query.duration", "Database query duration in milliseconds")
	m.CacheHitCount = counter("cache.hit.count", "Number of cache hits")
	m.CacheMissCount = counter("cache.miss.count", "Number of cache misses")
	m.SyncPagesFetched = counter("registry.sync.pages", "Registry pages fetched during sync")
	m.SyncItemsFetched = counter("registry.sync.items", "Registry items fetched during sync")
	m.FacilitiesSaved = counter("registry.sync.saved", "Facilities inserted by sync")
	m.FacilitiesUpdated = counter("registry.sync.updated", "Facilities updated by sync")
	m.SyncCeilingReached = counter("registry.sync.ceiling_reached", "Regions abandoned at the page ceiling")
	m.NearbyTruncations = counter("nearby.truncated", "Nearby queries that hit the result cap")

	if err != nil {
		return nil, err
	}
	return m, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	)

	metrics.RequestCount.Add(ctx, 1, attrs)
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("db.operation", operation)))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, keyPrefix string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.prefix", keyPrefix)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, keyPrefix string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.prefix", keyPrefix)))
}

// RecordSyncPage records one fetched registry page and its item count
func RecordSyncPage(ctx context.Context, metrics *Metrics, regionCode string, items int) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("region.code", regionCode))
	metrics.SyncPagesFetched.Add(ctx, 1, attrs)
	metrics.SyncItemsFetched.Add(ctx, int64(items), attrs)
}

// RecordSyncPersisted records inserted and updated facility counts
func RecordSyncPersisted(ctx context.Context, metrics *Metrics, regionCode string, saved, updated int) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("region.code", regionCode))
	metrics.FacilitiesSaved.Add(ctx, int64(saved), attrs)
	metrics.FacilitiesUpdated.Add(ctx, int64(updated), attrs)
}

// RecordSyncCeiling records a region abandoned at the page ceiling
func RecordSyncCeiling(ctx context.Context, metrics *Metrics, regionCode string) {
	if metrics == nil {
		return
	}
	metrics.SyncCeilingReached.Add(ctx, 1, metric.WithAttributes(attribute.String("region.code", regionCode)))
}

// RecordNearbyTruncated records a proximity query that hit the result cap
func RecordNearbyTruncated(ctx context.Context, metrics *Metrics) {
	if metrics == nil {
		return
	}
	metrics.NearbyTruncations.Add(ctx, 1)
}
