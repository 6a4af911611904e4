package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "missing.csv")))
	assert.False(t, FileExists(dir), "directories are not files")
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.False(t, DirExists(path))
}

func TestRecreateDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "stats")

	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale.html"), []byte("old"), 0o644))

	require.NoError(t, RecreateDir(target, 0o755))

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries, "recreated directory must be empty")
}

func TestRecreateDirMissing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "logs", "nested")

	require.NoError(t, RecreateDir(target, 0o755))
	assert.True(t, DirExists(target))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testPlan.csv")

	require.NoError(t, RemoveIfExists(path), "missing file is not an error")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, RemoveIfExists(path))
	assert.False(t, FileExists(path))
}
