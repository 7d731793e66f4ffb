package motiondetection

import (
	"sync"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/models"
)

// SnapshotWriter stores a frame with its regions drawn on top.
type SnapshotWriter interface {
	WriteSnapshot(frame models.Frame, regions []models.Region) (string, error)
}

// Decision is the outcome of one frame.
type Decision struct {
	Active  bool    // smoothed motion decision
	Changed bool    // Active differs from the previous frame
	Ready   bool    // warmup is over
	Hit     bool    // instantaneous detection of this frame
	Ratio   float64 // window ratio after this frame
}

// Status is a point in time view of a detector, safe to read from any goroutine.
type Status struct {
	Active          bool    `json:"active"`
	Ready           bool    `json:"ready"`
	FramesProcessed uint64  `json:"frames_processed"`
	WindowRatio     float64 `json:"window_ratio"`
	WindowLength    int     `json:"window_length"`
}

// MotionDetector runs foreground extraction, region filtering and the
// decision state machine for a single camera session.
type MotionDetector struct {
	extractor            *ForegroundExtractor
	regions              *RegionFilter
	machine              *StateMachine
	settingsProvider     config.SettingsProvider[MotionDetectionSettings]
	snapshots            SnapshotWriter
	snapshotOnActivation bool
	logger               common.Logger

	statusMu sync.RWMutex
	status   Status
}

func NewMotionDetector(
	subtractor BackgroundSubtractor,
	finder ContourFinder,
	provider config.SettingsProvider[MotionDetectionSettings],
	opts Options,
	clock Clock,
	logger common.Logger,
) *MotionDetector {
	if provider == nil {
		provider = config.NewStaticSettingsProvider(DefaultMotionDetectionSettings)
	}
	if logger == nil {
		logger = common.NopLogger
	}

	return &MotionDetector{
		extractor:            NewForegroundExtractor(subtractor),
		regions:              NewRegionFilter(finder),
		machine:              NewStateMachine(opts.MemorySize, opts.Warmup, clock),
		settingsProvider:     provider,
		snapshotOnActivation: opts.SnapshotOnActivation,
		logger:               logger,
	}
}

// SetSnapshotWriter enables overlay snapshots on activation. nil disables them.
func (d *MotionDetector) SetSnapshotWriter(w SnapshotWriter) {
	d.snapshots = w
}

// Apply processes one frame. Every frame updates the background model,
// warmup included. During warmup the decision is always inactive and
// unchanged.
//
// An extraction or region failure skips the decision for this frame: the
// window is not touched and the returned Decision carries the previous state
// with Changed false, alongside the error.
func (d *MotionDetector) Apply(frame models.Frame) (Decision, error) {
	ready := d.machine.Ready()
	wasActive := d.machine.Active()

	mask, err := d.extractor.Extract(frame, wasActive)
	if err != nil {
		decision := Decision{Active: wasActive, Ready: ready, Ratio: d.machine.Ratio()}
		d.record(decision)
		return decision, err
	}

	if !ready {
		decision := Decision{}
		d.record(decision)
		return decision, nil
	}

	settings := d.settingsProvider.GetSettings()
	hit, err := d.regions.HasLargeRegion(mask, settings.MotionMinContourArea)
	if err != nil {
		decision := Decision{Active: wasActive, Ready: true, Ratio: d.machine.Ratio()}
		d.record(decision)
		return decision, err
	}

	active, changed := d.machine.Update(hit, Thresholds{
		Activation:   settings.ActivationThreshold,
		Deactivation: settings.DeactivationThreshold,
	})
	decision := Decision{
		Active:  active,
		Changed: changed,
		Ready:   true,
		Hit:     hit,
		Ratio:   d.machine.Ratio(),
	}
	d.record(decision)

	if changed {
		if active {
			d.logger.Info("Motion detected", "frame", frame.Seq, "ratio", decision.Ratio)
			d.snapshot(frame, mask)
		} else {
			d.logger.Info("Motion stopped", "frame", frame.Seq, "ratio", decision.Ratio)
		}
	}

	return decision, nil
}

func (d *MotionDetector) snapshot(frame models.Frame, mask models.ForegroundMask) {
	if !d.snapshotOnActivation || d.snapshots == nil {
		return
	}

	regions, err := d.regions.Regions(mask)
	if err != nil {
		d.logger.Warn("Failed to collect regions for snapshot", "frame", frame.Seq, "error", err)
		return
	}
	path, err := d.snapshots.WriteSnapshot(frame, regions)
	if err != nil {
		d.logger.Warn("Failed to write activation snapshot", "frame", frame.Seq, "error", err)
		return
	}
	d.logger.Debug("Wrote activation snapshot", "path", path, "regions", len(regions))
}

func (d *MotionDetector) record(decision Decision) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()

	d.status.Active = decision.Active
	d.status.Ready = decision.Ready
	d.status.WindowRatio = decision.Ratio
	d.status.WindowLength = d.machine.state.Window.Len()
	d.status.FramesProcessed++
}

// Status returns the state after the most recent frame.
func (d *MotionDetector) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

// Active reports the current motion decision.
func (d *MotionDetector) Active() bool {
	return d.machine.Active()
}
