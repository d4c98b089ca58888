package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/postchunk/internal/config"
	"github.com/tigerroll/postchunk/internal/job"
	testfixture "github.com/tigerroll/postchunk/pkg/batch/test"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Database = testfixture.NewSQLiteConfig(t)
	return cfg
}

func TestExecute_RunsJobAndStops(t *testing.T) {
	cfg := sqliteConfig(t)
	var buf bytes.Buffer
	log := logger.New(logger.LevelDebug, &buf)

	var resp job.Response
	err := Execute(context.Background(), cfg, log, func(ctx context.Context, etl *job.ETLJob) error {
		resp = etl.Run(ctx)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, job.MessageNoPosts, resp.Body.Message)
	assert.Contains(t, buf.String(), "(fx)", "fx events go through the injected logger")
}

func TestExecute_PropagatesCallbackError(t *testing.T) {
	cfg := sqliteConfig(t)

	err := Execute(context.Background(), cfg, logger.Nop(), func(ctx context.Context, etl *job.ETLJob) error {
		return errors.New("callback failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback failed")
}

func TestExecute_InvalidConnectionOverride(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Connections["writer"] = map[string]interface{}{"port": "not-a-port"}

	called := false
	err := Execute(context.Background(), cfg, logger.Nop(), func(ctx context.Context, etl *job.ETLJob) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build application")
	assert.False(t, called)
}

func TestNewJobSettings(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Processing.ChunkSize = 700
	cfg.Tables.Chunks = "chunks_v2"

	s := NewJobSettings(cfg)
	assert.Equal(t, 700, s.ChunkSize)
	assert.Equal(t, 1000, s.BatchCommitSize)
	assert.Equal(t, 100, s.ProgressInterval)
	assert.Equal(t, "chunks_v2", s.Tables.Chunks)
}
