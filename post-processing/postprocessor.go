package postprocessing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg/transcoder"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/recording"
)

type PostProcessor interface {
	// ProcessVideo turns a raw clip into the final clip below outputDir.
	// The raw clip file is left in place.
	ProcessVideo(ctx context.Context, rawClip *recording.RawClip, outputDir string) (*VideoClip, error)
}

type FfmpegPostProcessor struct {
	settingsProvider config.SettingsProvider[PostProcessingSettings]
	codecProvider    common.CodecProvider
	logger           common.Logger
}

func NewFfmpegPostProcessor(settingsProvider config.SettingsProvider[PostProcessingSettings], codecProvider common.CodecProvider, logger common.Logger) *FfmpegPostProcessor {
	if logger == nil {
		logger = common.NopLogger
	}
	return &FfmpegPostProcessor{
		settingsProvider: settingsProvider,
		codecProvider:    codecProvider,
		logger:           logger,
	}
}

func (p *FfmpegPostProcessor) ProcessVideo(ctx context.Context, rawClip *recording.RawClip, outputDir string) (*VideoClip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Get the latest settings for this operation.
	// The provider is responsible for its own thread safety.
	settings := p.settingsProvider.GetSettings()

	codec, err := p.resolveCodec(settings.OutputCodec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := OutputPath(outputDir, settings.OutputPrefix, rawClip.Timestamp, settings.OutputFormat)

	trans := new(transcoder.Transcoder)

	err = trans.Initialize(rawClip.Path, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	// Video only, no audio
	trans.MediaFile().SetVideoCodec(codec)
	trans.MediaFile().SetOutputFormat(settings.OutputFormat)
	trans.MediaFile().SetSkipAudio(true)

	if filterChain := VideoFilter(settings); filterChain != "" {
		trans.MediaFile().SetVideoFilter(filterChain)
	}
	if settings.VideoBitRate != "" {
		trans.MediaFile().SetVideoBitRate(settings.VideoBitRate)
	}

	p.logger.Debug("Transcoding clip", "input", rawClip.Path, "output", outputPath, "codec", codec)

	done := trans.Run(true)

	// The input was probed during Initialize, so no second ffprobe run is needed.
	duration, err := parseDuration(trans.MediaFile().Metadata().Format.Duration)
	if err != nil {
		duration = rawClip.Duration
	}

	if err := <-done; err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to process video: %w", err)
	}

	return &VideoClip{
		Path:      outputPath,
		Codec:     codec,
		Format:    settings.OutputFormat,
		Timestamp: rawClip.Timestamp,
		Duration:  duration,
		SegmentID: rawClip.SegmentID,
	}, nil
}

func (p *FfmpegPostProcessor) resolveCodec(requested string) (string, error) {
	if p.codecProvider == nil || requested == "" {
		return requested, nil
	}
	codec, err := p.codecProvider.GetFallbackCodec(requested)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output codec: %w", err)
	}
	return codec, nil
}

// MoveProcessor is used when post-processing is disabled: the raw clip is
// moved to the output directory unchanged.
type MoveProcessor struct {
	prefix string
	logger common.Logger
}

func NewMoveProcessor(prefix string, logger common.Logger) *MoveProcessor {
	if logger == nil {
		logger = common.NopLogger
	}
	return &MoveProcessor{prefix: prefix, logger: logger}
}

func (p *MoveProcessor) ProcessVideo(ctx context.Context, rawClip *recording.RawClip, outputDir string) (*VideoClip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ext := rawClip.FileExtension()
	outputPath := OutputPath(outputDir, p.prefix, rawClip.Timestamp, ext)
	if err := moveFile(rawClip.Path, outputPath); err != nil {
		return nil, err
	}

	p.logger.Debug("Moved raw clip", "from", rawClip.Path, "to", outputPath)
	return &VideoClip{
		Path:      outputPath,
		Codec:     rawClip.Codec,
		Format:    ext,
		Timestamp: rawClip.Timestamp,
		Duration:  rawClip.Duration,
		SegmentID: rawClip.SegmentID,
	}, nil
}

// moveFile renames src to dst, copying across file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return os.Remove(src)
}

// OutputPath returns <dir>/<prefix>_<timestamp>.<format>.
func OutputPath(dir, prefix string, timestamp time.Time, format string) string {
	return filepath.Join(dir, common.ClipFileName(prefix, timestamp, strings.TrimLeft(format, ".")))
}

// VideoFilter builds the ffmpeg -vf chain for settings, empty if none applies.
func VideoFilter(settings PostProcessingSettings) string {
	var filters []string

	if settings.Grayscale {
		filters = append(filters, "format=gray")
	}
	if !settings.DownscaleResolution.IsEmpty() {
		filters = append(filters, fmt.Sprintf("scale=%s", settings.DownscaleResolution.Format("w:h")))
	}

	return strings.Join(filters, ",")
}

func parseDuration(durationStr string) (time.Duration, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration in video metadata")
	}

	durationSeconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", durationStr, err)
	}

	if durationSeconds <= 0 {
		return 0, fmt.Errorf("invalid or zero duration: %f seconds", durationSeconds)
	}

	return time.Duration(durationSeconds * float64(time.Second)), nil
}
