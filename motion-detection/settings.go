package motiondetection

import (
	"time"

	"github.com/yeti47/cryospy/client/motion-client/config"
)

// MotionDetectionSettings are the thresholds that may change while the
// detector runs. Window size and warmup are fixed per session, see Options.
type MotionDetectionSettings struct {
	MotionMinContourArea  float64 // a region must be strictly larger to count as a hit
	ActivationThreshold   float64 // ratio above which motion starts
	DeactivationThreshold float64 // ratio below which motion stops
}

// DefaultMotionDetectionSettings mirrors the defaults of config.DefaultConfig.
var DefaultMotionDetectionSettings = MotionDetectionSettings{
	MotionMinContourArea:  2500,
	ActivationThreshold:   0.0,
	DeactivationThreshold: 0.1,
}

// Options configure a detector for the lifetime of a camera session.
type Options struct {
	MemorySize           int
	Warmup               time.Duration
	SnapshotOnActivation bool
}

// OptionsFromConfig extracts the session options from cfg.
func OptionsFromConfig(cfg config.MotionDetectionConfig) Options {
	return Options{
		MemorySize:           cfg.DetectionPersistance.MemorySize,
		Warmup:               time.Duration(cfg.WarmupSeconds * float64(time.Second)),
		SnapshotOnActivation: cfg.SnapshotOnActivation,
	}
}

// MotionDetectionSettingsProvider implements SettingsProvider for
// MotionDetectionSettings on top of the application config.
type MotionDetectionSettingsProvider struct {
	configProvider config.SettingsProvider[config.Config]
}

func NewMotionDetectionSettingsProvider(configProvider config.SettingsProvider[config.Config]) *MotionDetectionSettingsProvider {
	return &MotionDetectionSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current motion thresholds mapped from the config.
func (p *MotionDetectionSettingsProvider) GetSettings() MotionDetectionSettings {
	md := p.configProvider.GetSettings().MotionDetection

	return MotionDetectionSettings{
		MotionMinContourArea:  float64(md.MotionMinContourArea),
		ActivationThreshold:   md.DetectionPersistance.ActivationDetectionRatioThreshold,
		DeactivationThreshold: md.DetectionPersistance.DeactivationDetectionRatioThreshold,
	}
}
