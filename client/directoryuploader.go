package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

// DirectoryUploader "uploads" clips by copying them to <root>/<category>/.
// It stands in for a remote drive, e.g. a mounted share.
type DirectoryUploader struct {
	root   string
	logger common.Logger
}

func NewDirectoryUploader(root string, logger common.Logger) *DirectoryUploader {
	if logger == nil {
		logger = common.NopLogger
	}
	return &DirectoryUploader{root: root, logger: logger}
}

func (u *DirectoryUploader) Upload(ctx context.Context, request UploadRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(u.root, request.Category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewNonRecoverableUploadError(0, fmt.Errorf("failed to create %s: %w", dir, err))
	}

	src, err := os.Open(request.Path)
	if err != nil {
		return fmt.Errorf("failed to open clip %s: %w", request.Path, err)
	}
	defer src.Close()

	target := filepath.Join(dir, filepath.Base(request.Path))
	dst, err := os.Create(target)
	if err != nil {
		return NewRecoverableUploadError(0, fmt.Errorf("failed to create %s: %w", target, err))
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return NewRecoverableUploadError(0, fmt.Errorf("failed to copy clip: %w", err))
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return NewRecoverableUploadError(0, fmt.Errorf("failed to close %s: %w", target, err))
	}

	u.logger.Info("Copied clip", "path", request.Path, "target", target)
	return nil
}
