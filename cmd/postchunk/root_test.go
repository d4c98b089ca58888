package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/postchunk/internal/config"
	"github.com/tigerroll/postchunk/internal/job"
	testfixture "github.com/tigerroll/postchunk/pkg/batch/test"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("database:\n  type: sqlite\n  database: %q\nsystem:\n  logging:\n    level: ERROR\n", dbPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(embeddedConfig)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunCommand_PrintsResponse(t *testing.T) {
	dbCfg := testfixture.NewSQLiteConfig(t)

	out, _, err := execute(t, "run", "--config", writeConfig(t, dbCfg.Database))
	require.NoError(t, err)

	var resp job.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, job.MessageNoPosts, resp.Body.Message)
	assert.NotEmpty(t, resp.Body.RunID)
}

func TestRunCommand_FailedRunExitsWithError(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := execute(t, "run", "--config", writeConfig(t, empty))
	require.ErrorIs(t, err, errRunFailed)

	var resp job.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "Required database tables do not exist", resp.Body.Error)
}

func TestRunCommand_InvalidConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  chunk_size: 0\n"), 0o600))

	out, _, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRunFailed)
	assert.Contains(t, err.Error(), "chunk_size")
	assert.Empty(t, out)
}

func TestCheckCommand(t *testing.T) {
	dbCfg := testfixture.NewSQLiteConfig(t)

	out, _, err := execute(t, "check", "--config", writeConfig(t, dbCfg.Database))
	require.NoError(t, err)
	assert.Contains(t, out, "ok: posts, comments, facebook_chunks exist")

	out, _, err = execute(t, "check", "--config", writeConfig(t, filepath.Join(t.TempDir(), "empty.db")))
	require.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, "missing")
}

func TestEmbeddedConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := config.Load(config.LoadOptions{Embedded: embeddedConfig}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 300, cfg.Processing.ChunkSize)
	assert.Equal(t, 1000, cfg.Processing.BatchCommitSize)
	assert.Equal(t, "facebook_chunks", cfg.Tables.Chunks)
	assert.Equal(t, "postchunk", cfg.Metrics.JobName)
	assert.NoError(t, cfg.Validate())
}
