package filemanagement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileTracker_EnsureAndCleanup(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "raw")
	tracker := NewLocalFileTracker(tempDir, nil)

	assert.Equal(t, 0, tracker.CleanupTempDirectory(), "missing directory")
	require.NoError(t, tracker.EnsureTempDirectory())
	assert.DirExists(t, tempDir)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a.avi"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.avi"), []byte("b"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "keep"), 0755))

	assert.Equal(t, 2, tracker.CleanupTempDirectory())

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name())
}

func TestLocalFileTracker_DeleteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.avi")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	tracker := NewLocalFileTracker(dir, nil)
	tracker.DeleteFile(path)
	assert.NoFileExists(t, path)

	tracker.DeleteFile(path)
}
