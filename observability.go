package boltfs

import (
	"context"
	"time"

	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
)

// Instrumenter wraps storage and search operations with metrics and tracing
type Instrumenter struct {
	metrics metricsx.Metrics
	tracer  tracingx.Tracer
}

// NewInstrumenter creates a new instrumenter with optional metrics and tracing
func NewInstrumenter(metrics metricsx.Metrics, tracer tracingx.Tracer) *Instrumenter {
	return &Instrumenter{
		metrics: metrics,
		tracer:  tracer,
	}
}

// TraceOperation wraps a storage operation with tracing and metrics
func (i *Instrumenter) TraceOperation(ctx context.Context, operation, path string, fn func(ctx context.Context) error) error {
	var span tracingx.Span
	if i.tracer != nil {
		ctx, span = i.tracer.Start(ctx, "boltfs."+operation,
			tracingx.WithSpanKind(tracingx.SpanKindClient),
			tracingx.WithAttributes(map[string]any{
				"boltfs.operation": operation,
				"boltfs.path":      path,
			}),
		)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	if i.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}

		i.metrics.Counter("boltfs_operations_total",
			metricsx.WithHelp("Total number of storage operations"),
			metricsx.WithLabels("operation", "status"),
		).Inc(operation, status)

		i.metrics.Histogram("boltfs_operation_duration_seconds",
			metricsx.WithHelp("Storage operation duration in seconds"),
			metricsx.WithLabels("operation"),
			metricsx.WithBuckets(.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10),
		).Observe(duration, operation)
	}

	if span != nil && err != nil {
		span.SetError(err)
	}

	return err
}

// RecordProbe records one provider probe during initialization
func (i *Instrumenter) RecordProbe(provider ProviderKind, outcome string) {
	if i.metrics != nil {
		i.metrics.Counter("boltfs_provider_probes_total",
			metricsx.WithHelp("Provider probes during fallback initialization"),
			metricsx.WithLabels("provider", "outcome"),
		).Inc(string(provider), outcome)
	}
}

// RecordActiveProvider records which provider the chain settled on
func (i *Instrumenter) RecordActiveProvider(provider ProviderKind) {
	if i.metrics != nil {
		i.metrics.Gauge("boltfs_active_provider",
			metricsx.WithHelp("Active provider after initialization (1 = active)"),
			metricsx.WithLabels("provider"),
		).Set(1, string(provider))
	}
}

// RecordHealthCheck records the result of a liveness probe
func (i *Instrumenter) RecordHealthCheck(provider ProviderKind, healthy bool) {
	if i.metrics != nil {
		status := "healthy"
		if !healthy {
			status = "unhealthy"
		}
		i.metrics.Counter("boltfs_health_checks_total",
			metricsx.WithHelp("Health check probes against the active provider"),
			metricsx.WithLabels("provider", "status"),
		).Inc(string(provider), status)
	}
}

// RecordSearch records search strategy usage and duration
func (i *Instrumenter) RecordSearch(strategy string, duration time.Duration, err error) {
	if i.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}

		i.metrics.Counter("boltfs_searches_total",
			metricsx.WithHelp("Total number of searches by strategy"),
			metricsx.WithLabels("strategy", "status"),
		).Inc(strategy, status)

		i.metrics.Histogram("boltfs_search_duration_seconds",
			metricsx.WithHelp("Search duration in seconds"),
			metricsx.WithLabels("strategy"),
			metricsx.WithBuckets(.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30),
		).Observe(duration.Seconds(), strategy)
	}
}

// RecordSearchBatch records one per-file batch of emitted matches
func (i *Instrumenter) RecordSearchBatch(matchCount int) {
	if i.metrics != nil {
		i.metrics.Histogram("boltfs_search_batch_matches",
			metricsx.WithHelp("Number of matches emitted per file batch"),
			metricsx.WithBuckets(1, 2, 5, 10, 25, 50, 100, 250),
		).Observe(float64(matchCount))
	}
}

// RecordUpload records upload batch sizes
func (i *Instrumenter) RecordUpload(operation string, blobCount int, failed bool) {
	if i.metrics != nil {
		i.metrics.Histogram("boltfs_upload_batch_size",
			metricsx.WithHelp("Number of blobs in upload batches"),
			metricsx.WithLabels("operation"),
			metricsx.WithBuckets(1, 5, 10, 25, 50, 100, 250, 500),
		).Observe(float64(blobCount), operation)

		if failed {
			i.metrics.Counter("boltfs_upload_failures_total",
				metricsx.WithHelp("Number of failed upload batches"),
				metricsx.WithLabels("operation"),
			).Inc(operation)
		}
	}
}
