package recording

import (
	"time"

	"github.com/yeti47/cryospy/client/motion-client/models"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// Accumulator buffers frames while motion is active and turns the buffer into
// a Segment on the deactivation edge. It is not safe for concurrent use.
type Accumulator struct {
	minimumWriteFrames int
	frameRate          float64
	dimensions         resolution.Resolution
	now                func() time.Time

	buffer    []models.Frame
	startedAt time.Time
}

// NewAccumulator creates an accumulator that keeps segments of at least
// minimumWriteFrames frames. frameRate and dimensions are copied onto every
// segment.
func NewAccumulator(minimumWriteFrames int, frameRate float64, dimensions resolution.Resolution) *Accumulator {
	if minimumWriteFrames < 0 {
		minimumWriteFrames = 0
	}
	return &Accumulator{
		minimumWriteFrames: minimumWriteFrames,
		frameRate:          frameRate,
		dimensions:         dimensions,
		now:                time.Now,
	}
}

// Observe feeds one frame with the decision made for it.
//
// While active the frame is appended. On a deactivation edge the buffer is
// completed: the Segment is returned if it is long enough, otherwise it is
// dropped and the number of dropped frames is returned instead.
func (a *Accumulator) Observe(frame models.Frame, active bool, changed bool) (*Segment, int) {
	if active {
		if len(a.buffer) == 0 {
			a.startedAt = frame.Timestamp
			if a.startedAt.IsZero() {
				a.startedAt = a.now()
			}
		}
		a.buffer = append(a.buffer, frame)
		return nil, 0
	}

	if changed {
		return a.complete(ReasonDeactivated)
	}
	return nil, 0
}

// Flush completes the in-progress buffer as if motion had just stopped.
// The minimum length rule applies. Nothing happens on an empty buffer.
func (a *Accumulator) Flush(reason FlushReason) (*Segment, int) {
	return a.complete(reason)
}

// Buffered returns the number of frames in the in-progress buffer.
func (a *Accumulator) Buffered() int {
	return len(a.buffer)
}

func (a *Accumulator) complete(reason FlushReason) (*Segment, int) {
	frames := a.buffer
	startedAt := a.startedAt
	a.buffer = nil
	a.startedAt = time.Time{}

	if len(frames) == 0 {
		return nil, 0
	}
	if len(frames) < a.minimumWriteFrames {
		return nil, len(frames)
	}

	return &Segment{
		ID:          newSegmentID(),
		Frames:      frames,
		FrameRate:   a.frameRate,
		Dimensions:  a.dimensions,
		StartedAt:   startedAt,
		CompletedAt: a.now(),
		Reason:      reason,
	}, 0
}
