package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/models"
)

type SubtractorSettings struct {
	History       int     // frames the MOG2 model remembers
	VarThreshold  float64 // MOG2 variance threshold
	DetectShadows bool
	MaskThreshold float64 // binary threshold applied to the raw mask
	KernelSize    int     // square morphology kernel, close then open
}

var DefaultSubtractorSettings = SubtractorSettings{
	History:       100,
	VarThreshold:  100,
	MaskThreshold: 200,
	KernelSize:    5,
}

// SubtractorSettingsFromConfig maps the motion detection config block.
func SubtractorSettingsFromConfig(cfg config.MotionDetectionConfig) SubtractorSettings {
	s := SubtractorSettings{
		History:       cfg.MogHistory,
		VarThreshold:  cfg.MogVarThreshold,
		DetectShadows: cfg.DetectShadows,
		MaskThreshold: cfg.MaskThreshold,
		KernelSize:    cfg.MorphKernelSize,
	}
	if s.History <= 0 {
		s.History = DefaultSubtractorSettings.History
	}
	if s.VarThreshold <= 0 {
		s.VarThreshold = DefaultSubtractorSettings.VarThreshold
	}
	if s.MaskThreshold <= 0 {
		s.MaskThreshold = DefaultSubtractorSettings.MaskThreshold
	}
	if s.KernelSize <= 0 {
		s.KernelSize = DefaultSubtractorSettings.KernelSize
	}
	return s
}

// backgroundModel is the part of gocv.BackgroundSubtractorMOG2 the
// subtractor uses.
type backgroundModel interface {
	ApplyWithLearningRate(src gocv.Mat, dst *gocv.Mat, learningRate float64) error
	Close() error
}

// MOG2Subtractor is a gocv MOG2 background model followed by thresholding and
// morphological cleanup. The returned mask is binary (0 or 255).
type MOG2Subtractor struct {
	mu       sync.Mutex
	mog2     backgroundModel
	kernel   gocv.Mat
	settings SubtractorSettings
	raw      gocv.Mat
	cleaned  gocv.Mat
}

func NewMOG2Subtractor(settings SubtractorSettings) *MOG2Subtractor {
	mog2 := gocv.NewBackgroundSubtractorMOG2WithParams(settings.History, settings.VarThreshold, settings.DetectShadows)
	return newMOG2Subtractor(&mog2, settings)
}

func newMOG2Subtractor(model backgroundModel, settings SubtractorSettings) *MOG2Subtractor {
	return &MOG2Subtractor{
		mog2:     model,
		kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(settings.KernelSize, settings.KernelSize)),
		settings: settings,
		raw:      gocv.NewMat(),
		cleaned:  gocv.NewMat(),
	}
}

// Apply updates the model with frame at learningRate (0 freezes it, -1 lets
// OpenCV choose) and returns the cleaned foreground mask.
func (s *MOG2Subtractor) Apply(frame models.Frame, learningRate float64) (models.ForegroundMask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := MatFromFrame(frame)
	if err != nil {
		return models.ForegroundMask{}, err
	}
	defer img.Close()

	if err := s.mog2.ApplyWithLearningRate(img, &s.raw, learningRate); err != nil {
		return models.ForegroundMask{}, fmt.Errorf("mog2 apply: %w", err)
	}
	if s.raw.Empty() {
		return models.ForegroundMask{}, fmt.Errorf("mog2 apply: empty mask for frame %d", frame.Seq)
	}

	gocv.Threshold(s.raw, &s.cleaned, float32(s.settings.MaskThreshold), 255, gocv.ThresholdBinary)
	if err := gocv.MorphologyEx(s.cleaned, &s.cleaned, gocv.MorphClose, s.kernel); err != nil {
		return models.ForegroundMask{}, fmt.Errorf("mask close: %w", err)
	}
	if err := gocv.MorphologyEx(s.cleaned, &s.cleaned, gocv.MorphOpen, s.kernel); err != nil {
		return models.ForegroundMask{}, fmt.Errorf("mask open: %w", err)
	}

	return MaskFromMat(s.cleaned), nil
}

func (s *MOG2Subtractor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.raw.Close()
	s.cleaned.Close()
	s.kernel.Close()
	return s.mog2.Close()
}
