package postprocessing

import "time"

// VideoClip is a clip in its final location under the output directory.
type VideoClip struct {
	Path      string
	Codec     string
	Format    string
	Timestamp time.Time
	Duration  time.Duration
	SegmentID string
}
