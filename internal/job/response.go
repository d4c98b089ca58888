package job

import (
	"errors"
	"net/http"

	"github.com/tigerroll/postchunk/internal/writer"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
)

const (
	MessageCompleted = "ETL process completed successfully"
	MessageNoPosts   = "No posts to process"
	MessageFailed    = "ETL process failed"
)

// Response is the outcome of one invocation.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// Body carries the counters of a run. Counters that do not apply to an outcome are omitted.
type Body struct {
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	PostsProcessed *int   `json:"posts_processed,omitempty"`
	ChunksCreated  *int   `json:"chunks_created,omitempty"`
	ChunksFailed   *int   `json:"chunks_failed,omitempty"`
	TotalChunks    *int   `json:"total_chunks,omitempty"`
	RunID          string `json:"run_id,omitempty"`
}

// OK reports whether the run succeeded.
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

func completed(runID string, posts int, stats writer.BatchStats) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body: Body{
			Message:        MessageCompleted,
			PostsProcessed: intPtr(posts),
			ChunksCreated:  intPtr(stats.Success),
			ChunksFailed:   intPtr(stats.Failed),
			TotalChunks:    intPtr(stats.Total),
			RunID:          runID,
		},
	}
}

func noPosts(runID string) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body: Body{
			Message:        MessageNoPosts,
			PostsProcessed: intPtr(0),
			ChunksCreated:  intPtr(0),
			RunID:          runID,
		},
	}
}

// failed maps err to a 500 response. Missing tables are reported without the generic message.
func failed(runID string, err error) Response {
	body := Body{Error: exception.ExtractErrorMessage(err), RunID: runID}
	if !errors.Is(err, exception.ErrTablesMissing) && !errors.Is(err, exception.ErrChunkTableMissing) {
		body.Message = MessageFailed
	}
	return Response{StatusCode: http.StatusInternalServerError, Body: body}
}

func intPtr(v int) *int { return &v }
