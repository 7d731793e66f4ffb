// Package vision binds the motion engine to OpenCV through gocv. Frames and
// masks cross the package boundary as plain byte buffers so nothing outside
// this package needs cgo.
package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/models"
)

func matTypeForChannels(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	default:
		return 0, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// FrameFromMat copies mat into a Frame.
func FrameFromMat(mat gocv.Mat, seq uint64, ts time.Time) models.Frame {
	return models.Frame{
		Seq:       seq,
		Timestamp: ts,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Channels:  mat.Channels(),
		Data:      mat.ToBytes(),
	}
}

// MatFromFrame creates a Mat holding a copy of the frame pixels. The caller
// must close it.
func MatFromFrame(frame models.Frame) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("frame %d is empty", frame.Seq)
	}
	mt, err := matTypeForChannels(frame.Channels)
	if err != nil {
		return gocv.NewMat(), err
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, mt, frame.Data)
}

// MaskFromMat copies a single channel mat into a ForegroundMask.
func MaskFromMat(mat gocv.Mat) models.ForegroundMask {
	return models.ForegroundMask{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Data:   mat.ToBytes(),
	}
}

// MatFromMask creates a single channel Mat from mask. The caller must close it.
func MatFromMask(mask models.ForegroundMask) (gocv.Mat, error) {
	if mask.Width <= 0 || mask.Height <= 0 || len(mask.Data) != mask.Width*mask.Height {
		return gocv.NewMat(), fmt.Errorf("invalid mask %dx%d with %d bytes", mask.Width, mask.Height, len(mask.Data))
	}
	return gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8UC1, mask.Data)
}
