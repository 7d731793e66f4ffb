package resolution

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution is a pixel size. The zero value means "unknown" or "unchanged".
type Resolution struct {
	Width  int
	Height int
}

// DefaultCapture is used when a capture backend does not report its frame size.
var DefaultCapture = Resolution{Width: 640, Height: 480}

var presets = map[string]Resolution{
	"240p":  {Width: 426, Height: 240},
	"360p":  {Width: 640, Height: 360},
	"480p":  {Width: 854, Height: 480},
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
}

// New returns a Resolution of the given size.
func New(width, height int) Resolution {
	return Resolution{Width: width, Height: height}
}

// String returns the resolution as "WxH" (e.g. 640x480).
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Format replaces "w" and "h" in formatString with width and height,
// e.g. Format("w:h") yields "1280:720" for ffmpeg scale filters.
func (r Resolution) Format(formatString string) string {
	result := strings.ReplaceAll(formatString, "w", strconv.Itoa(r.Width))
	return strings.ReplaceAll(result, "h", strconv.Itoa(r.Height))
}

// IsEmpty reports whether either dimension is unset.
func (r Resolution) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Pixels returns Width*Height.
func (r Resolution) Pixels() int {
	if r.IsEmpty() {
		return 0
	}
	return r.Width * r.Height
}

// OrDefault returns r, or def when r is empty.
func (r Resolution) OrDefault(def Resolution) Resolution {
	if r.IsEmpty() {
		return def
	}
	return r
}

// Parse converts "1920x1080", "1920:1080" or a preset such as "720p" into a
// Resolution. An empty string yields the zero Resolution and no error.
func Parse(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Resolution{}, nil
	}
	if res, ok := presets[s]; ok {
		return res, nil
	}

	sep := "x"
	if strings.Contains(s, ":") {
		sep = ":"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("invalid resolution format: %s", s)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("invalid width: %s", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("invalid height: %s", parts[1])
	}

	return Resolution{Width: width, Height: height}, nil
}
