package motiondetection

import (
	"errors"
	"fmt"

	"github.com/yeti47/cryospy/client/motion-client/models"
)

// ErrExtractionFailed is returned when the background subtractor fails.
var ErrExtractionFailed = errors.New("foreground extraction failed")

const (
	// FrozenLearningRate stops the background model from adapting.
	FrozenLearningRate = 0.0
	// AutoLearningRate lets the subtractor pick its own adaptation rate.
	AutoLearningRate = -1.0
)

// BackgroundSubtractor is a stateful background model. Every call updates the
// model with the given learning rate and returns the foreground of frame.
type BackgroundSubtractor interface {
	Apply(frame models.Frame, learningRate float64) (models.ForegroundMask, error)
}

// ForegroundExtractor turns frames into foreground masks. One instance must
// be used for the whole session since the model lives across calls.
type ForegroundExtractor struct {
	subtractor BackgroundSubtractor
}

func NewForegroundExtractor(subtractor BackgroundSubtractor) *ForegroundExtractor {
	return &ForegroundExtractor{subtractor: subtractor}
}

// Extract returns the foreground mask of frame. While motion is active the
// model is frozen so the moving object is not absorbed into the background.
func (e *ForegroundExtractor) Extract(frame models.Frame, motionActive bool) (models.ForegroundMask, error) {
	rate := AutoLearningRate
	if motionActive {
		rate = FrozenLearningRate
	}

	mask, err := e.subtractor.Apply(frame, rate)
	if err != nil {
		return models.ForegroundMask{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return mask, nil
}
