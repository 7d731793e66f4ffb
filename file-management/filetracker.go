package filemanagement

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

// FileTracker manages the raw clips written to the temporary directory
type FileTracker interface {
	// DeleteFile removes a file from disk; a missing file is not an error
	DeleteFile(filePath string)

	// EnsureTempDirectory creates the temporary directory if it doesn't exist
	EnsureTempDirectory() error

	// CleanupTempDirectory removes all files in the temporary directory and
	// returns how many were removed
	CleanupTempDirectory() int
}

// LocalFileTracker implements FileTracker for local filesystem
type LocalFileTracker struct {
	tempDir string
	logger  common.Logger
	mu      sync.Mutex
}

func NewLocalFileTracker(tempDir string, logger common.Logger) *LocalFileTracker {
	if logger == nil {
		logger = common.NopLogger
	}
	return &LocalFileTracker{
		tempDir: tempDir,
		logger:  logger,
	}
}

func (t *LocalFileTracker) TempDir() string {
	return t.tempDir
}

func (t *LocalFileTracker) DeleteFile(filePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("Failed to remove file", "path", filePath, "error", err)
		}
		return
	}
	t.logger.Debug("Deleted file", "path", filePath)
}

func (t *LocalFileTracker) EnsureTempDirectory() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.tempDir, 0755); err != nil {
		return err
	}
	t.logger.Info("Temporary directory ready", "path", t.tempDir)
	return nil
}

// CleanupTempDirectory is run at startup to drop raw clips left behind by an
// interrupted run. Subdirectories are left alone.
func (t *LocalFileTracker) CleanupTempDirectory() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("Failed to read temp directory", "path", t.tempDir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filePath := filepath.Join(t.tempDir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			t.logger.Warn("Failed to remove temp file", "path", filePath, "error", err)
			continue
		}
		t.logger.Info("Cleaned up temp file", "path", filePath)
		removed++
	}
	return removed
}
