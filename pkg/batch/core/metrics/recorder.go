// Package metrics defines the observability ports of the chunk pipeline.
// Implementations live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder records counters and durations for a single pipeline run.
type MetricRecorder interface {
	// RecordPostsRead records the number of posts loaded from the source table.
	RecordPostsRead(ctx context.Context, count int)

	// RecordChunkAssembled records one successfully assembled chunk.
	// truncated reports whether the word budget cut the text.
	RecordChunkAssembled(ctx context.Context, truncated bool)

	// RecordAssemblySkipped records a post whose chunk could not be assembled.
	RecordAssemblySkipped(ctx context.Context, reason string)

	// RecordChunkWrite records the outcome of a single-row insert.
	RecordChunkWrite(ctx context.Context, success bool)

	// RecordCommit records a commit checkpoint covering count rows.
	RecordCommit(ctx context.Context, count int)

	// RecordRollback records a rollback of a single failed row.
	RecordRollback(ctx context.Context)

	// RecordRunEnd records the final status code and wall-clock duration of a run.
	RecordRunEnd(ctx context.Context, statusCode int, duration time.Duration)

	// Flush delivers buffered metrics to their backend, if the backend is push based.
	Flush(ctx context.Context) error
}
