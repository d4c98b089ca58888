package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordPostsRead(ctx context.Context, count int) {}
func (r *NoOpMetricRecorder) RecordChunkAssembled(ctx context.Context, truncated bool) {}
func (r *NoOpMetricRecorder) RecordAssemblySkipped(ctx context.Context, reason string) {}
func (r *NoOpMetricRecorder) RecordChunkWrite(ctx context.Context, success bool) {}
func (r *NoOpMetricRecorder) RecordCommit(ctx context.Context, count int) {}
func (r *NoOpMetricRecorder) RecordRollback(ctx context.Context) {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, statusCode int, duration time.Duration) {}
func (r *NoOpMetricRecorder) Flush(ctx context.Context) error { return nil }

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}
func (t *NoOpTracer) Shutdown(ctx context.Context) error { return nil }

var _ Tracer = (*NoOpTracer)(nil)
