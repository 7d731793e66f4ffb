package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
	"github.com/yeti47/cryospy/client/motion-client/models"
	motiondetection "github.com/yeti47/cryospy/client/motion-client/motion-detection"
	"github.com/yeti47/cryospy/client/motion-client/recording"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

// syntheticSource yields total frames; frames whose zero based index is in
// [hitFrom, hitTo] carry a large foreground blob.
type syntheticSource struct {
	total, hitFrom, hitTo int
	next                  int
	failAt                int // index returning failErr, -1 for never
	failErr               error
	onRead                func(index int)
}

func newSyntheticSource(total, hitFrom, hitTo int) *syntheticSource {
	return &syntheticSource{total: total, hitFrom: hitFrom, hitTo: hitTo, failAt: -1}
}

func (s *syntheticSource) Read(ctx context.Context) (models.Frame, error) {
	i := s.next
	if i == s.failAt {
		return models.Frame{}, s.failErr
	}
	if i >= s.total {
		return models.Frame{}, io.EOF
	}
	s.next++
	if s.onRead != nil {
		s.onRead(i)
	}

	value := byte(0)
	if i >= s.hitFrom && i <= s.hitTo {
		value = 50
	}
	return models.Frame{Seq: uint64(i + 1), Width: 1, Height: 1, Channels: 1, Data: []byte{value}}, nil
}

func (s *syntheticSource) FrameRate() float64                { return 15 }
func (s *syntheticSource) Dimensions() resolution.Resolution { return resolution.New(1, 1) }

// maskSubtractor passes frame bytes through as the mask.
type maskSubtractor struct {
	failSeq uint64
}

func (s *maskSubtractor) Apply(frame models.Frame, _ float64) (models.ForegroundMask, error) {
	if frame.Seq == s.failSeq {
		return models.ForegroundMask{}, errors.New("subtractor failure")
	}
	return models.ForegroundMask{Width: frame.Width, Height: frame.Height, Data: frame.Data}, nil
}

// blobFinder reports one region of area 100 * first mask byte.
type blobFinder struct{}

func (blobFinder) FindRegions(mask models.ForegroundMask) ([]models.Region, error) {
	return []models.Region{{Area: float64(mask.Data[0]) * 100}}, nil
}

type collectingSink struct {
	mu       sync.Mutex
	segments []*recording.Segment
	err      error
}

func (s *collectingSink) Enqueue(_ context.Context, seg *recording.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.segments = append(s.segments, seg)
	return nil
}

func newDetector(subtractor motiondetection.BackgroundSubtractor) *motiondetection.MotionDetector {
	settings := config.NewStaticSettingsProvider(motiondetection.MotionDetectionSettings{
		MotionMinContourArea:  2500,
		ActivationThreshold:   0.5,
		DeactivationThreshold: 0.2,
	})
	return motiondetection.NewMotionDetector(subtractor, blobFinder{}, settings,
		motiondetection.Options{MemorySize: 10}, nil, nil)
}

func seqs(seg *recording.Segment) (first, last uint64) {
	return seg.Frames[0].Seq, seg.Frames[len(seg.Frames)-1].Seq
}

func TestLoop_EndToEndScenario(t *testing.T) {
	source := newSyntheticSource(100, 30, 60)
	sink := &collectingSink{}
	counter := events.NewCounter()

	loop := NewLoop(source, newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, counter, nil)

	require.NoError(t, loop.Run(context.Background()))

	require.Len(t, sink.segments, 1)
	seg := sink.segments[0]
	assert.GreaterOrEqual(t, seg.Len(), 30)
	assert.LessOrEqual(t, seg.Len(), 38)
	assert.Equal(t, 34, seg.Len())

	first, last := seqs(seg)
	assert.Equal(t, uint64(36), first)
	assert.Equal(t, uint64(69), last)
	assert.Equal(t, recording.ReasonDeactivated, seg.Reason)
	assert.Equal(t, 15.0, seg.FrameRate)

	assert.Equal(t, uint64(100), loop.FramesProcessed())
	assert.Equal(t, 1, counter.Count(events.MotionStarted))
	assert.Equal(t, 1, counter.Count(events.MotionStopped))
	assert.Equal(t, 1, counter.Count(events.SegmentCompleted))
	assert.Equal(t, 1, counter.Count(events.StreamReadFailure), "exhaustion is still reported")
}

func TestLoop_EndToEndScenario_TooShort(t *testing.T) {
	sink := &collectingSink{}
	counter := events.NewCounter()

	loop := NewLoop(newSyntheticSource(100, 30, 60), newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 40}, counter, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.Empty(t, sink.segments)
	assert.Equal(t, 1, counter.Count(events.SegmentDiscarded))
}

func TestLoop_CancelFlushesCurrentSegment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newSyntheticSource(100, 30, 60)
	source.onRead = func(index int) {
		if index == 49 {
			cancel()
		}
	}
	sink := &collectingSink{}

	loop := NewLoop(source, newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, nil, nil)

	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, uint64(50), loop.FramesProcessed(), "the frame read before cancel is still processed")
	require.Len(t, sink.segments, 1)
	first, last := seqs(sink.segments[0])
	assert.Equal(t, uint64(36), first)
	assert.Equal(t, uint64(50), last)
	assert.Equal(t, recording.ReasonShutdown, sink.segments[0].Reason)
}

func TestLoop_CancelRespectsMinimumWriteFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := newSyntheticSource(100, 30, 60)
	source.onRead = func(index int) {
		if index == 39 {
			cancel()
		}
	}
	sink := &collectingSink{}
	counter := events.NewCounter()

	loop := NewLoop(source, newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, counter, nil)

	require.NoError(t, loop.Run(ctx))
	assert.Empty(t, sink.segments)
	assert.Equal(t, 1, counter.Count(events.SegmentDiscarded))
}

func TestLoop_MaximumFrames(t *testing.T) {
	sink := &collectingSink{}
	loop := NewLoop(newSyntheticSource(100, 30, 60), newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10, MaximumFrames: 50}, nil, nil)

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, uint64(50), loop.FramesProcessed())
	require.Len(t, sink.segments, 1)
	assert.Equal(t, 15, sink.segments[0].Len())
	assert.Equal(t, recording.ReasonMaxFrames, sink.segments[0].Reason)
}

func TestLoop_StreamFailure(t *testing.T) {
	source := newSyntheticSource(100, 30, 60)
	source.failAt = 50
	source.failErr = errors.New("connection reset")
	sink := &collectingSink{}
	counter := events.NewCounter()

	loop := NewLoop(source, newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, counter, nil)

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, ErrStreamRead)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, 1, counter.Count(events.StreamReadFailure))
	require.Len(t, sink.segments, 1)
	assert.Equal(t, 15, sink.segments[0].Len())
	assert.Equal(t, recording.ReasonStreamEnd, sink.segments[0].Reason)
}

func TestLoop_ExtractionFailureDoesNotStopLoop(t *testing.T) {
	sink := &collectingSink{}
	counter := events.NewCounter()

	loop := NewLoop(newSyntheticSource(100, 30, 60), newDetector(&maskSubtractor{failSeq: 45}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, counter, nil)

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 1, counter.Count(events.ExtractionFailure))
	assert.Equal(t, uint64(100), loop.FramesProcessed())
	require.Len(t, sink.segments, 1)
	assert.Equal(t, 34, sink.segments[0].Len(), "the failed frame keeps the active state and is buffered")
}

func TestLoop_SinkFailureReportsLostSegment(t *testing.T) {
	sink := &collectingSink{err: errors.New("queue full")}
	counter := events.NewCounter()

	loop := NewLoop(newSyntheticSource(100, 30, 60), newDetector(&maskSubtractor{}), sink,
		recording.RecordingSettings{MinimumWriteFrames: 10}, counter, nil)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 1, counter.Count(events.SegmentLost))
	assert.Equal(t, uint64(100), loop.FramesProcessed())
}

func TestSinkFunc(t *testing.T) {
	var got *recording.Segment
	sink := SinkFunc(func(_ context.Context, seg *recording.Segment) error {
		got = seg
		return nil
	})

	seg := &recording.Segment{ID: "x"}
	require.NoError(t, sink.Enqueue(context.Background(), seg))
	assert.Same(t, seg, got)
}
