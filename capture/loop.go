// Package capture drives a camera session: it reads frames, runs motion
// detection on each one and hands completed segments to persistence.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/events"
	"github.com/yeti47/cryospy/client/motion-client/models"
	motiondetection "github.com/yeti47/cryospy/client/motion-client/motion-detection"
	"github.com/yeti47/cryospy/client/motion-client/recording"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// ErrStreamRead wraps frame source failures returned by Run.
var ErrStreamRead = errors.New("frame source failed")

// FrameSource yields frames in capture order. io.EOF marks a source that has
// no more frames.
type FrameSource interface {
	Read(ctx context.Context) (models.Frame, error)
	FrameRate() float64
	Dimensions() resolution.Resolution
}

// Detector makes the per-frame motion decision.
type Detector interface {
	Apply(frame models.Frame) (motiondetection.Decision, error)
}

// SegmentSink takes ownership of completed segments. Enqueue may block
// briefly but must not wait for the segment to be persisted.
type SegmentSink interface {
	Enqueue(ctx context.Context, seg *recording.Segment) error
}

// SinkFunc adapts a function to SegmentSink.
type SinkFunc func(ctx context.Context, seg *recording.Segment) error

func (f SinkFunc) Enqueue(ctx context.Context, seg *recording.Segment) error {
	return f(ctx, seg)
}

// Loop processes one camera session. It is single threaded: a frame is fully
// processed before the next one is read.
type Loop struct {
	source      FrameSource
	detector    Detector
	accumulator *recording.Accumulator
	sink        SegmentSink
	reporter    events.Reporter
	logger      common.Logger
	maxFrames   uint64

	framesProcessed atomic.Uint64
}

func NewLoop(
	source FrameSource,
	detector Detector,
	sink SegmentSink,
	settings recording.RecordingSettings,
	reporter events.Reporter,
	logger common.Logger,
) *Loop {
	if reporter == nil {
		reporter = events.Nop
	}
	if logger == nil {
		logger = common.NopLogger
	}
	maxFrames := uint64(0)
	if settings.MaximumFrames > 0 {
		maxFrames = uint64(settings.MaximumFrames)
	}

	return &Loop{
		source:      source,
		detector:    detector,
		accumulator: recording.NewAccumulator(settings.MinimumWriteFrames, source.FrameRate(), source.Dimensions()),
		sink:        sink,
		reporter:    reporter,
		logger:      logger,
		maxFrames:   maxFrames,
	}
}

// Run reads frames until the context is cancelled, the frame cap is reached
// or the source fails. In every case the in-progress segment is flushed as on
// a deactivation edge before Run returns.
//
// Cancellation and the frame cap return nil, as does a source reporting
// io.EOF. Any other source error is returned wrapped in ErrStreamRead.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Capture loop started", "fps", l.source.FrameRate(), "resolution", l.source.Dimensions().String(), "max_frames", l.maxFrames)

	for {
		if ctx.Err() != nil {
			l.flush(ctx, recording.ReasonShutdown)
			l.logger.Info("Capture loop stopped", "frames", l.FramesProcessed())
			return nil
		}

		frame, err := l.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return l.streamFailed(ctx, err)
		}

		l.process(ctx, frame)

		if l.maxFrames > 0 && l.FramesProcessed() >= l.maxFrames {
			l.flush(ctx, recording.ReasonMaxFrames)
			l.logger.Info("Reached maximum frame count", "frames", l.FramesProcessed())
			return nil
		}
	}
}

func (l *Loop) process(ctx context.Context, frame models.Frame) {
	l.framesProcessed.Add(1)

	decision, err := l.detector.Apply(frame)
	if err != nil {
		l.reporter.Report(events.New(events.ExtractionFailure, "Skipped motion decision for frame", err,
			map[string]any{"frame": frame.Seq}))
	}

	if decision.Changed {
		kind, msg := events.MotionStopped, "Motion stopped"
		if decision.Active {
			kind, msg = events.MotionStarted, "Motion started"
		}
		l.reporter.Report(events.New(kind, msg, nil, map[string]any{"frame": frame.Seq, "ratio": decision.Ratio}))
	}

	seg, dropped := l.accumulator.Observe(frame, decision.Active, decision.Changed)
	l.handOff(ctx, seg, dropped)
}

func (l *Loop) streamFailed(ctx context.Context, err error) error {
	l.reporter.Report(events.New(events.StreamReadFailure, "Frame source stopped", err,
		map[string]any{"frames": l.FramesProcessed()}))
	l.flush(ctx, recording.ReasonStreamEnd)

	if errors.Is(err, io.EOF) {
		l.logger.Info("Frame source exhausted", "frames", l.FramesProcessed())
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStreamRead, err)
}

func (l *Loop) flush(ctx context.Context, reason recording.FlushReason) {
	seg, dropped := l.accumulator.Flush(reason)
	l.handOff(ctx, seg, dropped)
}

func (l *Loop) handOff(ctx context.Context, seg *recording.Segment, dropped int) {
	if dropped > 0 {
		l.reporter.Report(events.New(events.SegmentDiscarded, "Discarded short motion segment", nil,
			map[string]any{"frames": dropped}))
	}
	if seg == nil {
		return
	}

	l.reporter.Report(events.New(events.SegmentCompleted, "Motion segment completed", nil,
		map[string]any{"segment_id": seg.ID, "frames": seg.Len(), "reason": string(seg.Reason)}))

	// segments flushed during shutdown must still reach the queue
	if err := l.sink.Enqueue(context.WithoutCancel(ctx), seg); err != nil {
		l.reporter.Report(events.New(events.SegmentLost, "Could not hand segment to persistence", err,
			map[string]any{"segment_id": seg.ID, "frames": seg.Len()}))
	}
}

// FramesProcessed returns the number of frames read so far. Safe to call
// from any goroutine.
func (l *Loop) FramesProcessed() uint64 {
	return l.framesProcessed.Load()
}
