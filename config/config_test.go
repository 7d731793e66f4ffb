package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MotionDetection, cfg.MotionDetection)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Camera, reloaded.Camera)
}

func TestLoadConfig_YAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
camera:
  type: file
  file:
    path: sample.mp4
  minimum_write_frames: 12
motion_detection:
  motion_min_contour_area: 900
  detection_persistance:
    memory_size: 20
    activation_detection_ratio_threshold: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Camera.Type)
	assert.Equal(t, "sample.mp4", cfg.Camera.File.Path)
	assert.Equal(t, 12, cfg.Camera.MinimumWriteFrames)
	assert.Equal(t, 900, cfg.MotionDetection.MotionMinContourArea)
	assert.Equal(t, 20, cfg.MotionDetection.DetectionPersistance.MemorySize)
	assert.Equal(t, 0.5, cfg.MotionDetection.DetectionPersistance.ActivationDetectionRatioThreshold)
	assert.Equal(t, 0.1, cfg.MotionDetection.DetectionPersistance.DeactivationDetectionRatioThreshold)
	assert.Equal(t, 2.0, cfg.MotionDetection.WarmupSeconds)
	assert.Equal(t, 3, cfg.Queue.BufferSize)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"camera":{"type":"device","device":{"index":2}},"queue":{"buffer_size":5}}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "device", cfg.Camera.Type)
	assert.Equal(t, 2, cfg.Camera.Device.Index)
	assert.Equal(t, 5, cfg.Queue.BufferSize)
}

func TestLoadConfig_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MotionDetection.DetectionPersistance.MemorySize = 0
	cfg.MotionDetection.DetectionPersistance.ActivationDetectionRatioThreshold = 1.5
	cfg.Camera.MinimumWriteFrames = -1
	cfg.Queue.BufferSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "memory_size")
	assert.Contains(t, err.Error(), "activation_detection_ratio_threshold")
	assert.Contains(t, err.Error(), "minimum_write_frames")
	assert.Contains(t, err.Error(), "buffer_size")
}

func TestValidate_AllowsEitherThresholdOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MotionDetection.DetectionPersistance.ActivationDetectionRatioThreshold = 0.2
	cfg.MotionDetection.DetectionPersistance.DeactivationDetectionRatioThreshold = 0.8

	assert.NoError(t, cfg.Validate())
}

func TestOverride(t *testing.T) {
	cfg := DefaultConfig()
	cameraType := "rtsp"
	emptyDir := ""
	minArea := 1200
	unsetFrames := -1
	warmup := 0.0

	cfg.Override(ConfigOverrides{
		CameraType:    &cameraType,
		OutputDir:     &emptyDir,
		MotionMinArea: &minArea,
		MaximumFrames: &unsetFrames,
		WarmupSeconds: &warmup,
	})

	assert.Equal(t, "rtsp", cfg.Camera.Type)
	assert.Equal(t, "out", cfg.Files.OutputDir)
	assert.Equal(t, 1200, cfg.MotionDetection.MotionMinContourArea)
	assert.Equal(t, 0, cfg.Camera.MaximumFrames)
	assert.Equal(t, 0.0, cfg.MotionDetection.WarmupSeconds)
}

func TestFileSettingsProvider_Refresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial, err := LoadConfig(path)
	require.NoError(t, err)

	provider, err := NewFileSettingsProvider(path, initial, ConfigOverrides{}, time.Hour, nil)
	require.NoError(t, err)

	changed, err := provider.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)

	updated := DefaultConfig()
	updated.MotionDetection.MotionMinContourArea = 4000
	require.NoError(t, saveConfig(path, updated))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err = provider.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 4000, provider.GetSettings().MotionDetection.MotionMinContourArea)
}

func TestFileSettingsProvider_KeepsSettingsOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial, err := LoadConfig(path)
	require.NoError(t, err)

	provider, err := NewFileSettingsProvider(path, initial, ConfigOverrides{}, time.Hour, nil)
	require.NoError(t, err)

	broken := DefaultConfig()
	broken.MotionDetection.DetectionPersistance.MemorySize = 0
	require.NoError(t, saveConfig(path, broken))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	_, err = provider.Refresh()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 10, provider.GetSettings().MotionDetection.DetectionPersistance.MemorySize)
}

func TestFileSettingsProvider_ReappliesOverridesOnReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial, err := LoadConfig(path)
	require.NoError(t, err)

	minArea := 500
	overrides := ConfigOverrides{MotionMinArea: &minArea}
	initial.Override(overrides)

	provider, err := NewFileSettingsProvider(path, initial, overrides, time.Hour, nil)
	require.NoError(t, err)
	require.Equal(t, 500, provider.GetSettings().MotionDetection.MotionMinContourArea)

	updated := DefaultConfig()
	updated.MotionDetection.WarmupSeconds = 5
	require.NoError(t, saveConfig(path, updated))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err := provider.Refresh()
	require.NoError(t, err)
	require.True(t, changed)

	settings := provider.GetSettings()
	assert.Equal(t, 500, settings.MotionDetection.MotionMinContourArea, "command line value survives the reload")
	assert.Equal(t, 5.0, settings.MotionDetection.WarmupSeconds)
}

func TestStaticSettingsProvider(t *testing.T) {
	provider := NewStaticSettingsProvider(42)
	assert.Equal(t, 42, provider.GetSettings())
}
