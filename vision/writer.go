package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/recording"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// ClipWriter encodes segments with gocv.VideoWriter.
type ClipWriter struct {
	codec  string
	logger common.Logger
}

// NewClipWriter creates a writer using the given FourCC codec, MJPG if empty.
func NewClipWriter(codec string, logger common.Logger) *ClipWriter {
	if codec == "" {
		codec = "MJPG"
	}
	if logger == nil {
		logger = common.NopLogger
	}
	return &ClipWriter{codec: codec, logger: logger}
}

// Write encodes seg into destination. Empty segments are refused with
// recording.ErrEmptySegment. On failure the partial file is removed.
func (w *ClipWriter) Write(ctx context.Context, seg *recording.Segment, destination string) (*recording.RawClip, error) {
	if err := seg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destination, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}

	first := seg.Frames[0]
	dims := clipDimensions(seg)

	prefix := "segment"
	if len(seg.ID) >= 8 {
		prefix += "_" + seg.ID[:8]
	}
	name := common.ClipFileName(prefix, seg.StartedAt, common.CodecToFileExtension(w.codec))
	clipPath := filepath.Join(destination, name)

	w.logger.Debug("Writing segment", "segment_id", seg.ID, "path", clipPath, "frames", seg.Len(), "codec", w.codec)

	writer, err := gocv.VideoWriterFile(clipPath, w.codec, seg.FrameRate, dims.Width, dims.Height, first.Channels >= 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create video writer: %w", err)
	}

	if err := w.writeFrames(ctx, writer, seg); err != nil {
		writer.Close()
		os.Remove(clipPath)
		return nil, err
	}
	if err := writer.Close(); err != nil {
		os.Remove(clipPath)
		return nil, fmt.Errorf("failed to finalize %s: %w", clipPath, err)
	}

	return recording.NewRawClip(clipPath, w.codec, seg), nil
}

// clipDimensions sizes the writer from the frames themselves. OpenCV drops
// frames that do not match the writer size, and seg.Dimensions may be a
// fallback the backend never delivered.
func clipDimensions(seg *recording.Segment) resolution.Resolution {
	first := seg.Frames[0]
	if first.Width > 0 && first.Height > 0 {
		return resolution.New(first.Width, first.Height)
	}
	return seg.Dimensions
}

func (w *ClipWriter) writeFrames(ctx context.Context, writer *gocv.VideoWriter, seg *recording.Segment) error {
	for _, frame := range seg.Frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := MatFromFrame(frame)
		if err != nil {
			img.Close()
			return fmt.Errorf("failed to convert frame %d: %w", frame.Seq, err)
		}
		err = writer.Write(img)
		img.Close()
		if err != nil {
			return fmt.Errorf("failed to write frame %d: %w", frame.Seq, err)
		}
	}
	return nil
}
