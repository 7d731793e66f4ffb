package recording

import (
	"github.com/yeti47/cryospy/client/motion-client/config"
)

type RecordingSettings struct {
	Codec              string // FourCC used for raw segment files, e.g. "MJPG"
	TempDir            string // where raw segment files are written
	MinimumWriteFrames int    // shorter segments are discarded
	MaximumFrames      int    // capture stops after this many frames, 0 = unbounded
}

var DefaultRecordingSettings = RecordingSettings{
	Codec:              "MJPG",
	MinimumWriteFrames: 50,
}

// RecordingSettingsFromConfig maps the application config onto RecordingSettings.
func RecordingSettingsFromConfig(cfg config.Config) RecordingSettings {
	settings := RecordingSettings{
		Codec:              cfg.Files.CaptureCodec,
		TempDir:            cfg.Files.TempDir,
		MinimumWriteFrames: cfg.Camera.MinimumWriteFrames,
		MaximumFrames:      cfg.Camera.MaximumFrames,
	}
	if settings.Codec == "" {
		settings.Codec = DefaultRecordingSettings.Codec
	}
	return settings
}
