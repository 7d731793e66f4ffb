package common

import (
	"fmt"
	"maps"
	"os/exec"
	"regexp"
	"strings"
)

// CodecFallbackMap lists, per requested ffmpeg encoder, the encoders to try in
// order when it is missing.
var CodecFallbackMap = map[string][]string{
	"libx264":      {"libx264", "libopenh264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},
	"libopenh264":  {"libopenh264", "libx264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},
	"h264_vaapi":   {"h264_vaapi", "libx264", "libopenh264", "h264_qsv", "h264_v4l2m2m"},
	"h264_qsv":     {"h264_qsv", "libx264", "libopenh264", "h264_vaapi", "h264_v4l2m2m"},
	"h264_v4l2m2m": {"h264_v4l2m2m", "libx264", "libopenh264", "h264_vaapi", "h264_qsv"},

	"libx265": {"libx265", "libx264", "libopenh264", "h264_vaapi", "h264_qsv", "h264_v4l2m2m"},
}

// CodecProvider answers which encoders the local ffmpeg can use.
type CodecProvider interface {
	IsCodecAvailable(codec string) bool
	GetFallbackCodec(requestedCodec string) (string, error)
	GetAvailableCodecs() map[string]bool
}

// matches encoder lines such as " V....D libx264   libx264 H.264 ..."
var encoderLinePattern = regexp.MustCompile(`^ ([VA][.SFXBD]{5})\s+([a-zA-Z0-9_-]+)\s+`)

// ParseEncoderList extracts encoder names from `ffmpeg -encoders` output.
func ParseEncoderList(output string) map[string]bool {
	codecs := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, " = ") {
			continue
		}
		matches := encoderLinePattern.FindStringSubmatch(line)
		if len(matches) < 3 {
			continue
		}
		codecs[matches[2]] = true
	}
	return codecs
}

// StaticCodecProvider resolves codecs against a fixed set of encoders.
type StaticCodecProvider struct {
	availableCodecs map[string]bool
	logger          Logger
}

func NewStaticCodecProvider(available map[string]bool, logger Logger) *StaticCodecProvider {
	if logger == nil {
		logger = NopLogger
	}
	codecs := make(map[string]bool, len(available))
	maps.Copy(codecs, available)
	return &StaticCodecProvider{availableCodecs: codecs, logger: logger}
}

// NewFFmpegCodecProvider queries the ffmpeg binary on PATH once and caches the
// encoders it reports. If ffmpeg cannot be run, no encoder is available.
func NewFFmpegCodecProvider(logger Logger) *StaticCodecProvider {
	if logger == nil {
		logger = NopLogger
	}
	output, err := exec.Command("ffmpeg", "-encoders").Output()
	if err != nil {
		logger.Warn("Failed to query FFmpeg encoders", "error", err)
		return NewStaticCodecProvider(nil, logger)
	}

	codecs := ParseEncoderList(string(output))
	logger.Info("Loaded available codecs from FFmpeg", "count", len(codecs))
	return NewStaticCodecProvider(codecs, logger)
}

func (c *StaticCodecProvider) IsCodecAvailable(codec string) bool {
	return c.availableCodecs[codec]
}

// GetAvailableCodecs returns a copy of the cached encoder set.
func (c *StaticCodecProvider) GetAvailableCodecs() map[string]bool {
	result := make(map[string]bool, len(c.availableCodecs))
	maps.Copy(result, c.availableCodecs)
	return result
}

// GetFallbackCodec returns requestedCodec if available, otherwise the first
// available encoder of its fallback chain.
func (c *StaticCodecProvider) GetFallbackCodec(requestedCodec string) (string, error) {
	if c.IsCodecAvailable(requestedCodec) {
		return requestedCodec, nil
	}

	chain, exists := CodecFallbackMap[requestedCodec]
	if !exists {
		return "", fmt.Errorf("codec '%s' is not available and no fallback is defined", requestedCodec)
	}

	for _, codec := range chain {
		if c.IsCodecAvailable(codec) {
			c.logger.Info("Using fallback codec", "requested", requestedCodec, "codec", codec)
			return codec, nil
		}
	}

	return "", fmt.Errorf("no suitable codec available from fallback chain: %v", chain)
}
