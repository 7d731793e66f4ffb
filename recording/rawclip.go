package recording

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// RawClip is a segment written to disk by a SegmentWriter, before any
// post-processing.
type RawClip struct {
	Path       string
	Codec      string
	SegmentID  string
	Timestamp  time.Time
	Duration   time.Duration
	Frames     int
	FrameRate  float64
	Dimensions resolution.Resolution
}

// NewRawClip describes seg written to path with codec.
func NewRawClip(path string, codec string, seg *Segment) *RawClip {
	return &RawClip{
		Path:       path,
		Codec:      codec,
		SegmentID:  seg.ID,
		Timestamp:  seg.StartedAt.UTC(),
		Duration:   seg.Duration(),
		Frames:     seg.Len(),
		FrameRate:  seg.FrameRate,
		Dimensions: seg.Dimensions,
	}
}

// FileExtension returns the extension without dot, from the path if it has
// one, otherwise from the codec.
func (c *RawClip) FileExtension() string {
	if ext := filepath.Ext(c.Path); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return strings.TrimPrefix(common.CodecToFileExtension(c.Codec), ".")
}
