package motiondetection

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/models"
)

// passthroughSubtractor returns the frame bytes as the mask and records the
// learning rates it was called with.
type passthroughSubtractor struct {
	rates []float64
	err   error
}

func (s *passthroughSubtractor) Apply(frame models.Frame, learningRate float64) (models.ForegroundMask, error) {
	s.rates = append(s.rates, learningRate)
	if s.err != nil {
		return models.ForegroundMask{}, s.err
	}
	return models.ForegroundMask{Width: frame.Width, Height: frame.Height, Data: frame.Data}, nil
}

// areaFinder reports one region whose area is 100 times the first mask byte.
type areaFinder struct {
	calls int
	err   error
}

func (f *areaFinder) FindRegions(mask models.ForegroundMask) ([]models.Region, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []models.Region{{Area: 1}, {Area: float64(mask.Data[0]) * 100}}, nil
}

type recordingSnapshots struct {
	frames  []uint64
	regions int
	err     error
}

func (r *recordingSnapshots) WriteSnapshot(frame models.Frame, regions []models.Region) (string, error) {
	r.frames = append(r.frames, frame.Seq)
	r.regions = len(regions)
	return "snapshot.jpg", r.err
}

func testFrame(seq uint64, hit bool) models.Frame {
	value := byte(0)
	if hit {
		value = 50
	}
	return models.Frame{Seq: seq, Width: 1, Height: 1, Channels: 1, Data: []byte{value}}
}

var testSettings = config.NewStaticSettingsProvider(MotionDetectionSettings{
	MotionMinContourArea:  2500,
	ActivationThreshold:   0.5,
	DeactivationThreshold: 0.2,
})

func TestMotionDetector_WarmupReturnsInactive(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	subtractor := &passthroughSubtractor{}
	finder := &areaFinder{}
	d := NewMotionDetector(subtractor, finder, testSettings, Options{MemorySize: 1, Warmup: 2 * time.Second}, clock, nil)

	for i := uint64(1); i <= 4; i++ {
		decision, err := d.Apply(testFrame(i, true))
		require.NoError(t, err)
		assert.Equal(t, Decision{}, decision)
		clock.Advance(500 * time.Millisecond)
	}

	assert.Len(t, subtractor.rates, 4, "warmup frames still feed the background model")
	assert.Zero(t, finder.calls)

	clock.Advance(time.Millisecond)
	decision, err := d.Apply(testFrame(5, true))
	require.NoError(t, err)
	assert.True(t, decision.Ready)
	assert.True(t, decision.Active)
	assert.True(t, decision.Changed)
}

func TestMotionDetector_LearningRateFollowsState(t *testing.T) {
	subtractor := &passthroughSubtractor{}
	d := NewMotionDetector(subtractor, &areaFinder{}, testSettings, Options{MemorySize: 1}, nil, nil)

	for i, hit := range []bool{false, true, true, false} {
		_, err := d.Apply(testFrame(uint64(i+1), hit))
		require.NoError(t, err)
	}

	assert.Equal(t, []float64{AutoLearningRate, AutoLearningRate, FrozenLearningRate, FrozenLearningRate}, subtractor.rates)
}

func TestMotionDetector_AreaMustExceedMinimum(t *testing.T) {
	settings := config.NewStaticSettingsProvider(MotionDetectionSettings{
		MotionMinContourArea: 5000,
		ActivationThreshold:  0.5,
	})
	d := NewMotionDetector(&passthroughSubtractor{}, &areaFinder{}, settings, Options{MemorySize: 1}, nil, nil)

	decision, err := d.Apply(testFrame(1, true))
	require.NoError(t, err)
	assert.False(t, decision.Hit)
	assert.False(t, decision.Active)
}

func TestMotionDetector_ExtractionFailureSkipsDecision(t *testing.T) {
	subtractor := &passthroughSubtractor{}
	d := NewMotionDetector(subtractor, &areaFinder{}, testSettings, Options{MemorySize: 4}, nil, nil)

	decision, err := d.Apply(testFrame(1, true))
	require.NoError(t, err)
	require.True(t, decision.Active)

	subtractor.err = errors.New("opencv exploded")
	decision, err = d.Apply(testFrame(2, false))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.True(t, decision.Active)
	assert.False(t, decision.Changed)
	assert.Equal(t, 1, d.Status().WindowLength)
}

func TestMotionDetector_RegionFailureSkipsDecision(t *testing.T) {
	finder := &areaFinder{err: errors.New("no contours")}
	d := NewMotionDetector(&passthroughSubtractor{}, finder, testSettings, Options{MemorySize: 4}, nil, nil)

	decision, err := d.Apply(testFrame(1, true))
	require.ErrorIs(t, err, ErrRegionsFailed)
	assert.False(t, decision.Active)
	assert.False(t, decision.Changed)
	assert.Equal(t, 0, d.Status().WindowLength)
}

func TestMotionDetector_SnapshotOnActivation(t *testing.T) {
	snapshots := &recordingSnapshots{}
	d := NewMotionDetector(&passthroughSubtractor{}, &areaFinder{}, testSettings,
		Options{MemorySize: 1, SnapshotOnActivation: true}, nil, nil)
	d.SetSnapshotWriter(snapshots)

	for i, hit := range []bool{false, true, true, false, true} {
		_, err := d.Apply(testFrame(uint64(i+1), hit))
		require.NoError(t, err)
	}

	assert.Equal(t, []uint64{2, 5}, snapshots.frames)
	assert.Equal(t, 2, snapshots.regions)
}

func TestMotionDetector_SnapshotFailureDoesNotAffectDecision(t *testing.T) {
	snapshots := &recordingSnapshots{err: errors.New("disk full")}
	d := NewMotionDetector(&passthroughSubtractor{}, &areaFinder{}, testSettings,
		Options{MemorySize: 1, SnapshotOnActivation: true}, nil, nil)
	d.SetSnapshotWriter(snapshots)

	decision, err := d.Apply(testFrame(1, true))
	require.NoError(t, err)
	assert.True(t, decision.Active)
	assert.True(t, decision.Changed)
}

func TestMotionDetector_Status(t *testing.T) {
	d := NewMotionDetector(&passthroughSubtractor{}, &areaFinder{}, testSettings, Options{MemorySize: 4}, nil, nil)

	for i, hit := range []bool{true, false, false} {
		_, err := d.Apply(testFrame(uint64(i+1), hit))
		require.NoError(t, err)
	}

	status := d.Status()
	assert.Equal(t, uint64(3), status.FramesProcessed)
	assert.True(t, status.Ready)
	assert.Equal(t, 3, status.WindowLength)
	assert.InDelta(t, 1.0/3.0, status.WindowRatio, 1e-9)
	assert.True(t, status.Active, "1/3 sits in the dead band")
}

func TestMotionDetectionSettingsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MotionDetection.MotionMinContourArea = 1234
	cfg.MotionDetection.DetectionPersistance.ActivationDetectionRatioThreshold = 0.4

	provider := NewMotionDetectionSettingsProvider(config.NewStaticSettingsProvider(*cfg))

	assert.Equal(t, MotionDetectionSettings{
		MotionMinContourArea:  1234,
		ActivationThreshold:   0.4,
		DeactivationThreshold: 0.1,
	}, provider.GetSettings())
}
