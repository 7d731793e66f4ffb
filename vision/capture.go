package vision

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/camera"
	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/models"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// maxEmptyReads is how many empty frames in a row are skipped before the
// stream is considered broken.
const maxEmptyReads = 30

// CaptureSource reads frames from a camera through gocv.VideoCapture.
type CaptureSource struct {
	name       string
	capture    *gocv.VideoCapture
	img        gocv.Mat
	frameRate  float64
	dimensions resolution.Resolution
	isFile     bool
	seq        uint64
	logger     common.Logger
}

// OpenCapture connects to cam. Width, height and frame rate come from the
// backend; when it reports 0 the defaults are 640x480 and the camera's
// configured rate.
func OpenCapture(cam camera.Camera, logger common.Logger) (*CaptureSource, error) {
	if logger == nil {
		logger = common.NopLogger
	}

	capture, err := gocv.OpenVideoCapture(cam.Source())
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", cam.Name(), err)
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	dimensions := resolution.New(width, height)
	if dimensions.IsEmpty() {
		dimensions = resolution.DefaultCapture
		logger.Info("Using default resolution", "camera", cam.Name(), "resolution", dimensions.String())
	}

	frameRate := cam.FrameRate()
	if reported := capture.Get(gocv.VideoCaptureFPS); frameRate <= 0 && reported > 0 {
		frameRate = reported
	}
	if frameRate <= 0 {
		frameRate = 15
	}

	_, isFile := cam.(camera.File)

	logger.Info("Opened camera", "camera", cam.Name(), "resolution", dimensions.String(), "fps", frameRate)

	return &CaptureSource{
		name:       cam.Name(),
		capture:    capture,
		img:        gocv.NewMat(),
		frameRate:  frameRate,
		dimensions: dimensions,
		isFile:     isFile,
		logger:     logger,
	}, nil
}

// Read returns the next frame. A finished file yields io.EOF.
func (s *CaptureSource) Read(ctx context.Context) (models.Frame, error) {
	for empty := 0; ; empty++ {
		if err := ctx.Err(); err != nil {
			return models.Frame{}, err
		}

		if ok := s.capture.Read(&s.img); !ok {
			if s.isFile {
				return models.Frame{}, io.EOF
			}
			return models.Frame{}, fmt.Errorf("failed to read frame from %s", s.name)
		}

		if !s.img.Empty() {
			s.seq++
			return FrameFromMat(s.img, s.seq, time.Now()), nil
		}

		if empty >= maxEmptyReads {
			return models.Frame{}, fmt.Errorf("received %d empty frames from %s", empty+1, s.name)
		}
		s.logger.Debug("Skipping empty frame", "camera", s.name)
	}
}

func (s *CaptureSource) FrameRate() float64 {
	return s.frameRate
}

func (s *CaptureSource) Dimensions() resolution.Resolution {
	return s.dimensions
}

func (s *CaptureSource) Close() error {
	s.img.Close()
	return s.capture.Close()
}
