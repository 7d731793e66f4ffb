package recording

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yeti47/cryospy/client/motion-client/models"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// ErrEmptySegment is returned by writers asked to persist a segment without frames.
var ErrEmptySegment = errors.New("segment has no frames")

// FlushReason tells why a segment was completed.
type FlushReason string

const (
	ReasonDeactivated FlushReason = "deactivated"
	ReasonShutdown    FlushReason = "shutdown"
	ReasonMaxFrames   FlushReason = "max_frames"
	ReasonStreamEnd   FlushReason = "stream_end"
)

// Segment is a contiguous run of frames captured while motion was active.
// It is handed over as a whole and never modified afterwards.
type Segment struct {
	ID          string
	Frames      []models.Frame
	FrameRate   float64
	Dimensions  resolution.Resolution
	StartedAt   time.Time
	CompletedAt time.Time
	Reason      FlushReason
}

func newSegmentID() string {
	return uuid.New().String()
}

// Len returns the number of frames.
func (s *Segment) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Frames)
}

// Duration is the playback length at the segment's frame rate.
func (s *Segment) Duration() time.Duration {
	if s.Len() == 0 || s.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Frames)) / s.FrameRate * float64(time.Second))
}

// Validate is meant for writers: it refuses segments that cannot be encoded.
func (s *Segment) Validate() error {
	if s.Len() == 0 {
		return ErrEmptySegment
	}
	return nil
}
