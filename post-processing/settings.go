package postprocessing

import (
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/resolution"
)

type PostProcessingSettings struct {
	OutputFormat        string                // Output container format (e.g., "mp4", "avi")
	OutputCodec         string                // ffmpeg encoder (e.g., "libx264")
	VideoBitRate        string                // e.g. "1000k"
	Grayscale           bool                  // Whether to convert video to grayscale
	DownscaleResolution resolution.Resolution // Empty keeps the capture size
	OutputPrefix        string                // File name prefix of processed clips
}

// PostProcessingSettingsProvider implements SettingsProvider for PostProcessingSettings
// by mapping the application config on every call.
type PostProcessingSettingsProvider struct {
	configProvider config.SettingsProvider[config.Config]
}

func NewPostProcessingSettingsProvider(configProvider config.SettingsProvider[config.Config]) *PostProcessingSettingsProvider {
	return &PostProcessingSettingsProvider{
		configProvider: configProvider,
	}
}

// GetSettings returns the current post-processing settings
func (p *PostProcessingSettingsProvider) GetSettings() PostProcessingSettings {
	return SettingsFromConfig(p.configProvider.GetSettings())
}

// SettingsFromConfig maps cfg. An unparsable resolution disables downscaling.
func SettingsFromConfig(cfg config.Config) PostProcessingSettings {
	var downscaleRes resolution.Resolution
	if cfg.PostProcessing.Resolution != "" {
		if parsedRes, err := resolution.Parse(cfg.PostProcessing.Resolution); err == nil {
			downscaleRes = parsedRes
		}
	}

	return PostProcessingSettings{
		OutputFormat:        cfg.PostProcessing.VideoFormat,
		OutputCodec:         cfg.PostProcessing.VideoCodec,
		VideoBitRate:        cfg.PostProcessing.VideoBitRate,
		Grayscale:           cfg.PostProcessing.Grayscale,
		DownscaleResolution: downscaleRes,
		OutputPrefix:        cfg.Files.OutputPrefix,
	}
}
