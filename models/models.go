package models

import (
	"image"
	"time"
)

// Frame is a single captured image. Data holds Height*Width*Channels bytes in
// row-major, interleaved (BGR for color sources) order.
// A frame must not be modified once it has been captured.
type Frame struct {
	Seq       uint64    // capture order, starting at 1
	Timestamp time.Time // time the frame was read from the source
	Width     int
	Height    int
	Channels  int
	Data      []byte
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Data) == 0
}

// ForegroundMask is a single channel, binary (0 or 255) image with the same
// spatial dimensions as the frame it was computed from.
type ForegroundMask struct {
	Width  int
	Height int
	Data   []byte
}

// Region is a connected foreground area found in a mask.
type Region struct {
	Area    float64
	Bounds  image.Rectangle
	Contour []image.Point
}
