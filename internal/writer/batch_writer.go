// Package writer persists assembled chunks with periodic commit checkpoints.
package writer

import (
	"context"
	"fmt"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	"github.com/tigerroll/postchunk/internal/repository"
	"github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	tx "github.com/tigerroll/postchunk/pkg/batch/core/tx"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// DefaultCommitThreshold is used when a non-positive threshold is configured.
const DefaultCommitThreshold = 1000

const savepointName = "chunk_write"

// WriteResult is the outcome of writing a single record.
type WriteResult struct {
	PostID string
	// Err is the insert error when the record was rejected, nil otherwise.
	Err error
}

// Succeeded reports whether the record was written.
func (r WriteResult) Succeeded() bool {
	return r.Err == nil
}

// BatchStats summarises a WriteAll call.
type BatchStats struct {
	Total   int
	Success int
	Failed  int
}

// Statistics are the cumulative counters of a BatchWriter.
type Statistics struct {
	// TotalInserted counts committed rows.
	TotalInserted int
	// TotalFailed counts rejected rows plus rows lost to a failed commit.
	TotalFailed int
	// Commits counts commit checkpoints.
	Commits int
}

// BatchWriter inserts chunks one row at a time and commits after every
// commitThreshold successful inserts. Every insert runs under a savepoint that is
// released afterwards, so open savepoints never accumulate within a segment. A failed
// insert is rolled back to its savepoint first: it never discards the other
// uncommitted rows of its segment and does not count towards the threshold.
//
// A BatchWriter owns its write connection and is not safe for concurrent use.
type BatchWriter struct {
	txManager tx.TransactionManager
	repo      repository.ChunkRepository
	threshold int
	log       logger.Logger
	recorder  metrics.MetricRecorder

	current tx.Tx
	pending int
	stats   Statistics
	closed  bool
}

// NewBatchWriter creates a BatchWriter.
func NewBatchWriter(txManager tx.TransactionManager, repo repository.ChunkRepository, commitThreshold int, log logger.Logger, recorder metrics.MetricRecorder) *BatchWriter {
	if commitThreshold <= 0 {
		commitThreshold = DefaultCommitThreshold
	}
	return &BatchWriter{
		txManager: txManager,
		repo:      repo,
		threshold: commitThreshold,
		log:       log.Named("writer"),
		recorder:  recorder,
	}
}

// TableExists reports whether the destination table exists.
func (w *BatchWriter) TableExists(ctx context.Context) bool {
	return w.repo.TableExists(ctx)
}

// Statistics returns the cumulative counters.
func (w *BatchWriter) Statistics() Statistics {
	return w.stats
}

// WriteOne inserts rec. A rejected insert is reported through WriteResult.Err and the
// writer stays usable. The returned error is reserved for failures that leave the
// transaction unusable (begin, savepoint handling or commit); the caller must stop.
func (w *BatchWriter) WriteOne(ctx context.Context, rec entity.ChunkRecord) (WriteResult, error) {
	res := WriteResult{PostID: rec.PostID}
	if w.closed {
		return res, exception.NewBatchError(exception.ModuleWriter, "writer is closed", nil, false, false)
	}

	if w.current == nil {
		t, err := w.txManager.Begin(ctx)
		if err != nil {
			return res, exception.NewBatchError(exception.ModuleWriter, "failed to begin write transaction", err, false, false)
		}
		w.current = t
	}

	if err := w.current.Savepoint(savepointName); err != nil {
		return res, exception.NewBatchError(exception.ModuleWriter, "failed to create savepoint", err, false, false)
	}

	if err := w.repo.InsertChunk(ctx, w.current, rec); err != nil {
		w.stats.TotalFailed++
		res.Err = err
		w.recorder.RecordChunkWrite(ctx, false)
		if rbErr := w.current.RollbackToSavepoint(savepointName); rbErr != nil {
			return res, exception.NewBatchErrorf(exception.ModuleWriter, "failed to roll back rejected chunk for post %s", rec.PostID, rbErr)
		}
		if err := w.current.ReleaseSavepoint(savepointName); err != nil {
			return res, exception.NewBatchError(exception.ModuleWriter, "failed to release savepoint", err, false, false)
		}
		w.recorder.RecordRollback(ctx)
		w.log.Warnf("Chunk for post %s rejected: %v", rec.PostID, err)
		return res, nil
	}

	if err := w.current.ReleaseSavepoint(savepointName); err != nil {
		return res, exception.NewBatchError(exception.ModuleWriter, "failed to release savepoint", err, false, false)
	}
	w.pending++
	w.recorder.RecordChunkWrite(ctx, true)
	if w.pending >= w.threshold {
		if err := w.commit(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// WriteAll writes records in order and commits whatever is still pending at the end.
// Rejected records are counted in BatchStats.Failed and do not stop the batch.
func (w *BatchWriter) WriteAll(ctx context.Context, records []entity.ChunkRecord) (BatchStats, error) {
	stats := BatchStats{Total: len(records)}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, exception.NewBatchErrorf(exception.ModuleWriter, "write interrupted after %d of %d records", i, len(records), err)
		}
		res, err := w.WriteOne(ctx, rec)
		if err != nil {
			return stats, err
		}
		if res.Succeeded() {
			stats.Success++
		} else {
			stats.Failed++
		}
	}
	if err := w.Flush(ctx); err != nil {
		return stats, err
	}
	w.log.Infof("Batch write complete: total=%d success=%d failed=%d.", stats.Total, stats.Success, stats.Failed)
	return stats, nil
}

// Flush commits pending inserts. A segment holding only rejected records is rolled back.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if w.pending > 0 {
		return w.commit(ctx)
	}
	if w.current != nil {
		t := w.current
		w.current = nil
		if err := w.txManager.Rollback(t); err != nil {
			return exception.NewBatchError(exception.ModuleWriter, "failed to release empty write transaction", err, false, false)
		}
	}
	return nil
}

// Close commits pending inserts and releases the open transaction. It is idempotent.
func (w *BatchWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	if w.pending > 0 {
		w.log.Infof("Committing %d pending chunks before close.", w.pending)
	}
	w.closed = true
	return w.Flush(ctx)
}

// Abort rolls back the open segment after an unrecoverable error and closes the writer.
// Uncommitted rows are counted as failed.
func (w *BatchWriter) Abort() error {
	w.closed = true
	if w.current == nil {
		return nil
	}
	t := w.current
	w.stats.TotalFailed += w.pending
	w.current = nil
	w.pending = 0
	return w.txManager.Rollback(t)
}

func (w *BatchWriter) commit(ctx context.Context) error {
	t := w.current
	count := w.pending
	w.current = nil
	w.pending = 0

	if err := w.txManager.Commit(t); err != nil {
		w.stats.TotalFailed += count
		if rbErr := w.txManager.Rollback(t); rbErr != nil {
			w.log.Debugf("Rollback after failed commit: %v", rbErr)
		}
		return exception.NewBatchError(exception.ModuleWriter, fmt.Sprintf("failed to commit %d chunks", count), err, false, false)
	}

	w.stats.TotalInserted += count
	w.stats.Commits++
	w.recorder.RecordCommit(ctx, count)
	w.log.Infof("Committed %d chunks (total inserted: %d).", count, w.stats.TotalInserted)
	return nil
}
