// Package job runs one post-to-chunk invocation: read, assemble, write, report.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/postchunk/internal/chunk"
	"github.com/tigerroll/postchunk/internal/domain/entity"
	"github.com/tigerroll/postchunk/internal/repository"
	"github.com/tigerroll/postchunk/internal/writer"
	"github.com/tigerroll/postchunk/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// Settings are the tunables of a run.
type Settings struct {
	Tables           repository.TableNames
	ChunkSize        int
	BatchCommitSize  int
	ProgressInterval int
}

// ETLJob reads every post with its comments over the reader connection, assembles one
// chunk per post, releases the reader and writes the chunks over the writer connection.
type ETLJob struct {
	provider database.DBProvider
	settings Settings
	log      logger.Logger
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewETLJob creates an ETLJob.
func NewETLJob(provider database.DBProvider, settings Settings, log logger.Logger, recorder metrics.MetricRecorder, tracer metrics.Tracer) *ETLJob {
	if settings.ProgressInterval <= 0 {
		settings.ProgressInterval = 100
	}
	return &ETLJob{
		provider: provider,
		settings: settings,
		log:      log.Named("job"),
		recorder: recorder,
		tracer:   tracer,
	}
}

// Run executes one invocation and never returns an error: every outcome is a Response.
func (j *ETLJob) Run(ctx context.Context) Response {
	runID := uuid.NewString()
	start := time.Now()

	ctx, end := j.tracer.StartSpan(ctx, "postchunk.run", map[string]interface{}{
		"run_id":            runID,
		"chunk_size":        j.settings.ChunkSize,
		"batch_commit_size": j.settings.BatchCommitSize,
	})
	defer end()

	j.log.Infof("ETL run %s started: chunk_size=%d, batch_commit_size=%d", runID, j.settings.ChunkSize, j.settings.BatchCommitSize)

	resp, err := j.run(ctx, runID)
	if err != nil {
		j.tracer.RecordError(ctx, exception.ModuleJob, err)
		j.log.Errorf("ETL run %s failed: %v", runID, err)
		if relErr := j.release(); relErr != nil {
			j.log.Warnf("Failed to release connections: %v", relErr)
		}
		resp = failed(runID, err)
	}

	j.recorder.RecordRunEnd(ctx, resp.StatusCode, time.Since(start))
	if err := j.recorder.Flush(ctx); err != nil {
		j.log.Warnf("Failed to push run metrics: %v", err)
	}
	return resp
}

// Check reports whether the source and destination tables exist on the reader connection.
func (j *ETLJob) Check(ctx context.Context) (bool, error) {
	db, err := j.provider.GetConnection(database.ReaderConnection)
	if err != nil {
		return false, exception.NewBatchError(exception.ModuleReader, "failed to connect reader", err, false, false)
	}
	defer func() {
		if err := j.provider.Close(database.ReaderConnection); err != nil {
			j.log.Warnf("Failed to close reader connection: %v", err)
		}
	}()
	return repository.NewPostRepository(db, j.settings.Tables, j.log).TablesExist(ctx), nil
}

func (j *ETLJob) run(ctx context.Context, runID string) (Response, error) {
	batch, err := j.read(ctx)
	if err != nil {
		return Response{}, err
	}
	if len(batch) == 0 {
		j.log.Warnf("No posts found in database")
		return noPosts(runID), nil
	}

	assembled := j.assemble(ctx, batch)

	stats, err := j.write(ctx, assembled)
	if err != nil {
		return Response{}, err
	}

	j.log.Infof("ETL run %s completed: posts processed=%d, chunks created=%d/%d, failed=%d",
		runID, len(batch), stats.Success, stats.Total, stats.Failed)
	return completed(runID, len(batch), stats), nil
}

// read loads every post with its ordered comments, then closes the reader connection.
func (j *ETLJob) read(ctx context.Context) ([]entity.PostComments, error) {
	ctx, end := j.tracer.StartSpan(ctx, "postchunk.read", nil)
	defer end()

	db, err := j.provider.GetConnection(database.ReaderConnection)
	if err != nil {
		return nil, exception.NewBatchError(exception.ModuleReader, "failed to connect reader", err, false, false)
	}
	posts := repository.NewPostRepository(db, j.settings.Tables, j.log)

	if !posts.TablesExist(ctx) {
		return nil, exception.ErrTablesMissing
	}

	all, err := posts.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}
	j.recorder.RecordPostsRead(ctx, len(all))
	j.log.Infof("Found %d posts to process", len(all))

	batch := make([]entity.PostComments, 0, len(all))
	for i, post := range all {
		comments, err := posts.GetCommentsForPost(ctx, post.PostID)
		if err != nil {
			return nil, err
		}
		batch = append(batch, entity.PostComments{Post: post, Comments: comments})
		if (i+1)%j.settings.ProgressInterval == 0 {
			j.log.Infof("Processed %d/%d posts...", i+1, len(all))
		}
	}

	if err := j.provider.Close(database.ReaderConnection); err != nil {
		j.log.Warnf("Failed to close reader connection: %v", err)
	}
	return batch, nil
}

func (j *ETLJob) assemble(ctx context.Context, batch []entity.PostComments) []entity.ChunkRecord {
	ctx, end := j.tracer.StartSpan(ctx, "postchunk.assemble", map[string]interface{}{"posts": len(batch)})
	defer end()

	assembler := chunk.NewAssembler(j.settings.ChunkSize, j.log, j.recorder)
	records := assembler.AssembleBatch(ctx, batch)
	j.log.Infof("Generated %d chunks", len(records))
	return records
}

// write persists records over the writer connection and closes it.
func (j *ETLJob) write(ctx context.Context, records []entity.ChunkRecord) (writer.BatchStats, error) {
	ctx, end := j.tracer.StartSpan(ctx, "postchunk.write", map[string]interface{}{"chunks": len(records)})
	defer end()

	db, err := j.provider.GetConnection(database.WriterConnection)
	if err != nil {
		return writer.BatchStats{}, exception.NewBatchError(exception.ModuleWriter, "failed to connect writer", err, false, false)
	}
	w := writer.NewBatchWriter(
		gormadapter.NewTransactionManager(db),
		repository.NewChunkRepository(db, j.settings.Tables.Chunks),
		j.settings.BatchCommitSize,
		j.log,
		j.recorder,
	)
	if !w.TableExists(ctx) {
		return writer.BatchStats{}, exception.ErrChunkTableMissing
	}

	stats, err := w.WriteAll(ctx, records)
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			j.log.Debugf("Rollback of open segment failed: %v", abortErr)
		}
		return stats, err
	}
	if err := w.Close(ctx); err != nil {
		return stats, err
	}
	j.tracer.RecordEvent(ctx, "chunks.written", map[string]interface{}{
		"success": stats.Success,
		"failed":  stats.Failed,
		"commits": w.Statistics().Commits,
	})

	if err := j.provider.Close(database.WriterConnection); err != nil {
		j.log.Warnf("Failed to close writer connection: %v", err)
	}
	return stats, nil
}

// release closes both connections; closing a connection that is not open is a no-op.
func (j *ETLJob) release() error {
	var result *multierror.Error
	for _, name := range []string{database.ReaderConnection, database.WriterConnection} {
		if err := j.provider.Close(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("release %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}
