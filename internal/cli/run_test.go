package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tidemark/internal/store"
)

// writeConfig writes a minimal YAML config into dir and returns its path
// along with the database path it points at.
func writeConfig(t *testing.T, dir, sourcePath string) (cfgPath, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(dir, "sales.db")
	cfg := "target:\n" +
		"  database: " + dbPath + "\n" +
		"  table: orders\n"
	if sourcePath != "" {
		cfg = "source:\n  path: " + sourcePath + "\n" + cfg
	}

	cfgPath = filepath.Join(dir, "tidemark.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dbPath
}

func TestRun_FullLoadThenIdempotentRerun(t *testing.T) {
	dir := t.TempDir()
	cfgPath, dbPath := writeConfig(t, dir, filepath.Join("testdata", "clean_batch.csv"))

	out, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Run complete (full load)")
	assert.Contains(t, out, "3 read, 3 delta, 3 inserted, 0 updated")

	st, err := store.Open(dbPath, "orders", "orders_staging")
	require.NoError(t, err)
	n, err := st.CountOrders(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, st.Close())

	// Same source again: everything is at or below the watermark.
	out, err = execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 read, 0 delta, 0 inserted, 0 updated")
}

func TestRun_SourceFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeConfig(t, dir, filepath.Join(dir, "does-not-exist.csv"))

	out, err := execute(t, "run", "--config", cfgPath,
		"--source", filepath.Join("testdata", "clean_batch.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "3 inserted")
}

func TestRun_RejectedBatchLeavesTargetEmpty(t *testing.T) {
	dir := t.TempDir()
	cfgPath, dbPath := writeConfig(t, dir, filepath.Join("testdata", "bad_batch.csv"))

	out, err := execute(t, "run", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [quality]")
	assert.Contains(t, err.Error(), "run failed at stage quality")

	st, err := store.Open(dbPath, "orders", "orders_staging")
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_JSONResult(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeConfig(t, dir, filepath.Join("testdata", "clean_batch.csv"))

	out, err := execute(t, "--format", "json", "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Contains(t, out, `"full_load":true`)
	assert.Contains(t, out, `"inserted":3`)
}

func TestRun_MissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_NoSourceConfigured(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeConfig(t, dir, "")

	_, err := execute(t, "run", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no source file")
}
