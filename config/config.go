package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Camera          CameraConfig          `json:"camera" yaml:"camera"`
	Files           FilesConfig           `json:"files" yaml:"files"`
	Log             LogConfig             `json:"log" yaml:"log"`
	MotionDetection MotionDetectionConfig `json:"motion_detection" yaml:"motion_detection"`
	PostProcessing  PostProcessingConfig  `json:"post_processing" yaml:"post_processing"`
	Queue           QueueConfig           `json:"queue" yaml:"queue"`
	Upload          UploadConfig          `json:"upload" yaml:"upload"`
	Mail            MailConfig            `json:"mail" yaml:"mail"`
	MQTT            MQTTConfig            `json:"mqtt" yaml:"mqtt"`
	Catalog         CatalogConfig         `json:"catalog" yaml:"catalog"`
	Status          StatusConfig          `json:"status" yaml:"status"`

	// How often the config file is checked for changed motion thresholds.
	SettingsRefreshSeconds int `json:"settings_refresh_seconds" yaml:"settings_refresh_seconds"`
}

type CameraConfig struct {
	Type               string       `json:"type" yaml:"type"`
	C100               C100Config   `json:"c100" yaml:"c100"`
	RTSP               RTSPConfig   `json:"rtsp" yaml:"rtsp"`
	Device             DeviceConfig `json:"device" yaml:"device"`
	File               FileConfig   `json:"file" yaml:"file"`
	MinimumWriteFrames int          `json:"minimum_write_frames" yaml:"minimum_write_frames"`
	MaximumFrames      int          `json:"maximum_frames" yaml:"maximum_frames"` // 0 = unbounded
}

// C100Config addresses a Tapo C100 over RTSP. Credentials are the camera
// account configured in the Tapo app.
type C100Config struct {
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	IPAddress string `json:"ip_address" yaml:"ip_address"`
	Port      int    `json:"port" yaml:"port"`
	FPS       int    `json:"fps" yaml:"fps"`
}

type RTSPConfig struct {
	URL string  `json:"url" yaml:"url"`
	FPS float64 `json:"fps" yaml:"fps"`
}

type DeviceConfig struct {
	Index int     `json:"index" yaml:"index"`
	FPS   float64 `json:"fps" yaml:"fps"`
}

type FileConfig struct {
	Path string  `json:"path" yaml:"path"`
	FPS  float64 `json:"fps" yaml:"fps"` // 0 = use the container's rate
}

type FilesConfig struct {
	OutputDir          string `json:"output_dir" yaml:"output_dir"`
	OutputPrefix       string `json:"output_prefix" yaml:"output_prefix"`
	VideoFileExtension string `json:"video_file_extension" yaml:"video_file_extension"`
	TempDir            string `json:"temp_dir" yaml:"temp_dir"`
	CaptureCodec       string `json:"capture_codec" yaml:"capture_codec"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	Dir   string `json:"dir" yaml:"dir"`
	Name  string `json:"name" yaml:"name"`
}

type DetectionPersistanceConfig struct {
	MemorySize                          int     `json:"memory_size" yaml:"memory_size"`
	ActivationDetectionRatioThreshold   float64 `json:"activation_detection_ratio_threshold" yaml:"activation_detection_ratio_threshold"`
	DeactivationDetectionRatioThreshold float64 `json:"deactivation_detection_ratio_threshold" yaml:"deactivation_detection_ratio_threshold"`
}

type MotionDetectionConfig struct {
	MotionMinContourArea int                        `json:"motion_min_contour_area" yaml:"motion_min_contour_area"`
	WarmupSeconds        float64                    `json:"warmup_seconds" yaml:"warmup_seconds"`
	DetectionPersistance DetectionPersistanceConfig `json:"detection_persistance" yaml:"detection_persistance"`
	MogHistory           int                        `json:"mog_history" yaml:"mog_history"`
	MogVarThreshold      float64                    `json:"mog_var_threshold" yaml:"mog_var_threshold"`
	DetectShadows        bool                       `json:"detect_shadows" yaml:"detect_shadows"`
	MaskThreshold        float64                    `json:"mask_threshold" yaml:"mask_threshold"`
	MorphKernelSize      int                        `json:"morph_kernel_size" yaml:"morph_kernel_size"`
	SnapshotOnActivation bool                       `json:"snapshot_on_activation" yaml:"snapshot_on_activation"`
}

type PostProcessingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	VideoCodec   string `json:"video_codec" yaml:"video_codec"`
	VideoFormat  string `json:"video_format" yaml:"video_format"`
	VideoBitRate string `json:"video_bit_rate" yaml:"video_bit_rate"`
	Grayscale    bool   `json:"grayscale" yaml:"grayscale"`
	Resolution   string `json:"resolution" yaml:"resolution"` // e.g. "1280x720" or "720p"; empty keeps the capture size
}

type QueueConfig struct {
	BufferSize          int `json:"buffer_size" yaml:"buffer_size"`
	EnqueueRetries      int `json:"enqueue_retries" yaml:"enqueue_retries"`
	EnqueueTimeoutMs    int `json:"enqueue_timeout_ms" yaml:"enqueue_timeout_ms"`
	DrainTimeoutSeconds int `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds"`
}

type UploadConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Type           string `json:"type" yaml:"type"` // "server" or "directory"
	ServerURL      string `json:"server_url" yaml:"server_url"`
	ClientID       string `json:"client_id" yaml:"client_id"`
	ClientSecret   string `json:"client_secret" yaml:"client_secret"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	Directory      string `json:"directory" yaml:"directory"`
	Category       string `json:"category" yaml:"category"`
}

type MailAccountConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	ToAddress string `json:"to_address" yaml:"to_address"`
}

type MailTypesConfig struct {
	MotionDetectionTitle   string `json:"motion_detection_title" yaml:"motion_detection_title"`
	MotionDetectionContent string `json:"motion_detection_content" yaml:"motion_detection_content"`
}

type MailConfig struct {
	Enabled            bool              `json:"enabled" yaml:"enabled"`
	SMTPHost           string            `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort           int               `json:"smtp_port" yaml:"smtp_port"`
	Account            MailAccountConfig `json:"account" yaml:"account"`
	MailTypes          MailTypesConfig   `json:"mail_types" yaml:"mail_types"`
	MinIntervalSeconds int               `json:"min_interval_seconds" yaml:"min_interval_seconds"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Topic    string `json:"topic" yaml:"topic"`
	QoS      byte   `json:"qos" yaml:"qos"`
}

type CatalogConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type StatusConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Type: "c100",
			C100: C100Config{
				Username:  "your_username",
				Password:  "your_pass",
				IPAddress: "your_ip",
				Port:      554,
				FPS:       15,
			},
			Device:             DeviceConfig{Index: 0, FPS: 15},
			MinimumWriteFrames: 50,
		},
		Files: FilesConfig{
			OutputDir:          "out",
			OutputPrefix:       "output",
			VideoFileExtension: "mp4",
			TempDir:            filepath.Join(os.TempDir(), "motion-client"),
			CaptureCodec:       "MJPG",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			Name:  "motion-client",
		},
		MotionDetection: MotionDetectionConfig{
			MotionMinContourArea: 2500,
			WarmupSeconds:        2.0,
			DetectionPersistance: DetectionPersistanceConfig{
				MemorySize:                          10,
				ActivationDetectionRatioThreshold:   0.0,
				DeactivationDetectionRatioThreshold: 0.1,
			},
			MogHistory:           100,
			MogVarThreshold:      100,
			MaskThreshold:        200,
			MorphKernelSize:      5,
			SnapshotOnActivation: true,
		},
		PostProcessing: PostProcessingConfig{
			Enabled:      true,
			VideoCodec:   "libx264",
			VideoFormat:  "mp4",
			VideoBitRate: "1000k",
		},
		Queue: QueueConfig{
			BufferSize:          3,
			EnqueueRetries:      3,
			EnqueueTimeoutMs:    500,
			DrainTimeoutSeconds: 30,
		},
		Upload: UploadConfig{
			Type:           "server",
			ServerURL:      "http://localhost:8080",
			TimeoutSeconds: 30,
			Category:       "motion_detections",
		},
		Mail: MailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
			Account: MailAccountConfig{
				Address:   "account@gmail.com",
				Password:  "password",
				ToAddress: "account@gmail.com",
			},
			MailTypes: MailTypesConfig{
				MotionDetectionTitle:   "Motion detection",
				MotionDetectionContent: "Detected motion on:",
			},
			MinIntervalSeconds: 60,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "motion-client",
			Topic:    "motion-client",
			QoS:      1,
		},
		Catalog: CatalogConfig{
			Enabled: true,
			Path:    "segments.db",
		},
		Status: StatusConfig{
			Address: ":8090",
		},
		SettingsRefreshSeconds: 10,
	}
}

// LoadConfig loads configuration from a YAML (.yaml/.yml) or JSON file.
// Values missing from the file keep their defaults. If the file does not
// exist, a default one is written and returned.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			if err := saveConfig(filename, config); err != nil {
				return nil, fmt.Errorf("failed to create default config file: %w", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := unmarshal(filename, data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(filename string, data []byte, config *Config) error {
	if isYAML(filename) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

func saveConfig(filename string, config *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the ranges the motion engine relies on. The ordering of
// the activation and deactivation thresholds is deliberately not checked.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	md := c.MotionDetection
	dp := md.DetectionPersistance
	check(dp.MemorySize >= 1, "memory_size must be at least 1, got %d", dp.MemorySize)
	check(dp.ActivationDetectionRatioThreshold >= 0 && dp.ActivationDetectionRatioThreshold <= 1,
		"activation_detection_ratio_threshold must be in [0,1], got %v", dp.ActivationDetectionRatioThreshold)
	check(dp.DeactivationDetectionRatioThreshold >= 0 && dp.DeactivationDetectionRatioThreshold <= 1,
		"deactivation_detection_ratio_threshold must be in [0,1], got %v", dp.DeactivationDetectionRatioThreshold)
	check(md.MotionMinContourArea >= 0, "motion_min_contour_area must not be negative, got %d", md.MotionMinContourArea)
	check(md.WarmupSeconds >= 0, "warmup_seconds must not be negative, got %v", md.WarmupSeconds)
	check(c.Camera.MinimumWriteFrames >= 0, "minimum_write_frames must not be negative, got %d", c.Camera.MinimumWriteFrames)
	check(c.Camera.MaximumFrames >= 0, "maximum_frames must not be negative, got %d", c.Camera.MaximumFrames)
	check(c.Camera.Type != "", "camera type must be set")
	check(c.Queue.BufferSize >= 1, "queue buffer_size must be at least 1, got %d", c.Queue.BufferSize)
	check(c.Queue.EnqueueRetries >= 0, "queue enqueue_retries must not be negative, got %d", c.Queue.EnqueueRetries)
	check(c.Files.OutputDir != "", "files output_dir must be set")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ConfigOverrides holds command line values that replace file values when set.
type ConfigOverrides struct {
	CameraType         *string
	OutputDir          *string
	MotionMinArea      *int
	WarmupSeconds      *float64
	MinimumWriteFrames *int
	MaximumFrames      *int
	LogLevel           *string
}

// Override applies the non-empty values of overrides. Negative numbers are
// treated as "not set".
func (c *Config) Override(overrides ConfigOverrides) {
	if overrides.CameraType != nil && *overrides.CameraType != "" {
		c.Camera.Type = *overrides.CameraType
	}
	if overrides.OutputDir != nil && *overrides.OutputDir != "" {
		c.Files.OutputDir = *overrides.OutputDir
	}
	if overrides.MotionMinArea != nil && *overrides.MotionMinArea >= 0 {
		c.MotionDetection.MotionMinContourArea = *overrides.MotionMinArea
	}
	if overrides.WarmupSeconds != nil && *overrides.WarmupSeconds >= 0 {
		c.MotionDetection.WarmupSeconds = *overrides.WarmupSeconds
	}
	if overrides.MinimumWriteFrames != nil && *overrides.MinimumWriteFrames >= 0 {
		c.Camera.MinimumWriteFrames = *overrides.MinimumWriteFrames
	}
	if overrides.MaximumFrames != nil && *overrides.MaximumFrames >= 0 {
		c.Camera.MaximumFrames = *overrides.MaximumFrames
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		c.Log.Level = *overrides.LogLevel
	}
}
