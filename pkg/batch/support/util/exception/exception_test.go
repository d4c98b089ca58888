package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewBatchError(ModuleWriter, "failed to insert chunk", cause, true, false)

	assert.Equal(t, "[writer] failed to insert chunk: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsSkippable())
	assert.False(t, err.IsRetryable())

	bare := NewBatchError(ModuleJob, "nothing to wrap", nil, false, false)
	assert.Equal(t, "[job] nothing to wrap", bare.Error())
}

func TestNewBatchErrorf(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewBatchErrorf(ModuleReader, "failed to read comments for post %s", "P1", cause)

	assert.Equal(t, "failed to read comments for post P1", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
}

func TestClassification(t *testing.T) {
	skippable := fmt.Errorf("wrapped: %w", NewBatchError(ModuleWriter, "duplicate", nil, true, false))
	fatal := NewBatchError(ModuleWriter, "commit failed", nil, false, false)

	assert.True(t, IsSkippable(skippable))
	assert.False(t, IsFatal(skippable))
	assert.False(t, IsSkippable(fatal))
	assert.True(t, IsFatal(fatal))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))

	be, ok := AsBatchError(skippable)
	require.True(t, ok)
	assert.Equal(t, "duplicate", be.Message)
}

func TestIsTableNotExistError(t *testing.T) {
	assert.True(t, IsTableNotExistError(errors.New(`ERROR: relation "facebook_chunks" does not exist (SQLSTATE 42P01)`)))
	assert.True(t, IsTableNotExistError(errors.New("Error 1146 (42S02): Table 'etl.posts' doesn't exist")))
	assert.True(t, IsTableNotExistError(errors.New("no such table: comments")))
	assert.True(t, IsTableNotExistError(fmt.Errorf("precondition: %w", ErrTablesMissing)))
	assert.False(t, IsTableNotExistError(errors.New("UNIQUE constraint failed")))
	assert.False(t, IsTableNotExistError(nil))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", ExtractErrorMessage(nil))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))
	assert.Equal(t, "Required database tables do not exist",
		ExtractErrorMessage(NewBatchError(ModuleJob, ErrTablesMissing.Error(), nil, false, false)))
	assert.Equal(t, "read failed: eof",
		ExtractErrorMessage(NewBatchError(ModuleReader, "read failed", errors.New("eof"), false, false)))
}
