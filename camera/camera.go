// Package camera describes where frames come from. Each camera family is a
// variant of the Camera interface; new families register a factory instead of
// adding branches to the capture code.
package camera

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/yeti47/cryospy/client/motion-client/config"
)

// ErrUnknownCameraType is returned by FromConfig for unregistered types.
var ErrUnknownCameraType = errors.New("unknown camera type")

// Camera is one video source.
type Camera interface {
	// Name identifies the camera in logs and events. It never contains credentials.
	Name() string
	// Source is what the capture backend opens: a URL or path string, or a device index.
	Source() any
	// FrameRate is the configured rate, 0 when the stream should report it.
	FrameRate() float64
}

// TapoC100 is a TP-Link Tapo C100 reached over RTSP using its camera account.
type TapoC100 struct {
	Username  string
	Password  string
	IPAddress string
	Port      int
	FPS       int
}

func (c TapoC100) Name() string {
	return fmt.Sprintf("tapo-c100@%s", net.JoinHostPort(c.IPAddress, strconv.Itoa(c.Port)))
}

// Source returns the low resolution stream, rtsp://user:pass@ip:port/stream2.
func (c TapoC100) Source() any {
	u := url.URL{
		Scheme: "rtsp",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.IPAddress, strconv.Itoa(c.Port)),
		Path:   "/stream2",
	}
	return u.String()
}

func (c TapoC100) FrameRate() float64 { return float64(c.FPS) }

// RTSP is any camera with a known stream URL.
type RTSP struct {
	URL string
	FPS float64
}

// Name returns the stream URL without user info.
func (c RTSP) Name() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "rtsp"
	}
	u.User = nil
	return u.String()
}

func (c RTSP) Source() any        { return c.URL }
func (c RTSP) FrameRate() float64 { return c.FPS }

// Device is a locally attached camera addressed by index.
type Device struct {
	Index int
	FPS   float64
}

func (c Device) Name() string       { return fmt.Sprintf("device-%d", c.Index) }
func (c Device) Source() any        { return c.Index }
func (c Device) FrameRate() float64 { return c.FPS }

// File replays a recorded video, mostly for tests and tuning.
type File struct {
	Path string
	FPS  float64
}

func (c File) Name() string       { return c.Path }
func (c File) Source() any        { return c.Path }
func (c File) FrameRate() float64 { return c.FPS }

// Factory builds a camera from its config block.
type Factory func(cfg config.CameraConfig) (Camera, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a camera type available to FromConfig, replacing any
// factory registered under the same name.
func Register(cameraType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[cameraType] = factory
}

// Types lists the registered camera types, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FromConfig builds the camera selected by cfg.Type.
func FromConfig(cfg config.CameraConfig) (Camera, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownCameraType, cfg.Type, Types())
	}
	return factory(cfg)
}

func init() {
	Register("c100", func(cfg config.CameraConfig) (Camera, error) {
		c := cfg.C100
		if c.IPAddress == "" {
			return nil, fmt.Errorf("c100 camera requires ip_address")
		}
		if c.Port == 0 {
			c.Port = 554
		}
		if c.FPS == 0 {
			c.FPS = 15
		}
		return TapoC100{Username: c.Username, Password: c.Password, IPAddress: c.IPAddress, Port: c.Port, FPS: c.FPS}, nil
	})
	Register("rtsp", func(cfg config.CameraConfig) (Camera, error) {
		if cfg.RTSP.URL == "" {
			return nil, fmt.Errorf("rtsp camera requires url")
		}
		return RTSP{URL: cfg.RTSP.URL, FPS: cfg.RTSP.FPS}, nil
	})
	Register("device", func(cfg config.CameraConfig) (Camera, error) {
		if cfg.Device.Index < 0 {
			return nil, fmt.Errorf("device index must not be negative")
		}
		return Device{Index: cfg.Device.Index, FPS: cfg.Device.FPS}, nil
	})
	Register("file", func(cfg config.CameraConfig) (Camera, error) {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file camera requires path")
		}
		return File{Path: cfg.File.Path, FPS: cfg.File.FPS}, nil
	})
}
