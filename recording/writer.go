package recording

import "context"

// SegmentWriter encodes a segment into a file below destination and returns
// the written clip. Implementations must refuse empty segments with
// ErrEmptySegment.
type SegmentWriter interface {
	Write(ctx context.Context, seg *Segment, destination string) (*RawClip, error)
}
