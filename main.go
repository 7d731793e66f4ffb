package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/camera"
	"github.com/yeti47/cryospy/client/motion-client/capture"
	"github.com/yeti47/cryospy/client/motion-client/catalog"
	"github.com/yeti47/cryospy/client/motion-client/client"
	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
	filemanagement "github.com/yeti47/cryospy/client/motion-client/file-management"
	motiondetection "github.com/yeti47/cryospy/client/motion-client/motion-detection"
	"github.com/yeti47/cryospy/client/motion-client/notifications"
	postprocessing "github.com/yeti47/cryospy/client/motion-client/post-processing"
	"github.com/yeti47/cryospy/client/motion-client/recording"
	"github.com/yeti47/cryospy/client/motion-client/status"
	"github.com/yeti47/cryospy/client/motion-client/uploading"
	"github.com/yeti47/cryospy/client/motion-client/vision"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML or JSON config file")

	// Config override flags
	cameraType := flag.String("camera-type", "", fmt.Sprintf("Camera type %v (overrides config)", camera.Types()))
	outputDir := flag.String("output-dir", "", "Output directory for clips (overrides config)")
	motionMinArea := flag.Int("motion-min-area", -1, "Minimum contour area for motion detection (overrides config)")
	warmupSeconds := flag.Float64("warmup-seconds", -1, "Seconds before motion decisions are made (overrides config)")
	minimumWriteFrames := flag.Int("minimum-write-frames", -1, "Shortest segment that is persisted, in frames (overrides config)")
	maximumFrames := flag.Int("maximum-frames", -1, "Stop after this many frames, 0 = unbounded (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	overrides := config.ConfigOverrides{
		CameraType:         cameraType,
		OutputDir:          outputDir,
		MotionMinArea:      motionMinArea,
		WarmupSeconds:      warmupSeconds,
		MinimumWriteFrames: minimumWriteFrames,
		MaximumFrames:      maximumFrames,
		LogLevel:           logLevel,
	}
	cfg.Override(overrides)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := common.CreateLogger(common.LogLevel(cfg.Log.Level), cfg.Log.Dir, cfg.Log.Name)

	if err := run(*configPath, cfg, overrides, logger); err != nil {
		logger.Error("Motion client failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, cfg *config.Config, overrides config.ConfigOverrides, logger common.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settingsProvider, err := config.NewFileSettingsProvider(configPath, cfg, overrides,
		time.Duration(cfg.SettingsRefreshSeconds)*time.Second, logger)
	if err != nil {
		return fmt.Errorf("failed to create settings provider: %w", err)
	}

	logger.Info("Configuration loaded",
		"camera", cfg.Camera.Type,
		"output_dir", cfg.Files.OutputDir,
		"minimum_write_frames", cfg.Camera.MinimumWriteFrames,
		"maximum_frames", cfg.Camera.MaximumFrames,
		"post_processing", cfg.PostProcessing.Enabled,
		"upload", cfg.Upload.Enabled)

	cam, err := camera.FromConfig(cfg.Camera)
	if err != nil {
		return err
	}
	source, err := vision.OpenCapture(cam, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	subtractor := vision.NewMOG2Subtractor(vision.SubtractorSettingsFromConfig(cfg.MotionDetection))
	defer subtractor.Close()

	detector := motiondetection.NewMotionDetector(
		subtractor,
		vision.NewContourFinder(),
		motiondetection.NewMotionDetectionSettingsProvider(settingsProvider),
		motiondetection.OptionsFromConfig(cfg.MotionDetection),
		nil,
		logger,
	)
	if cfg.MotionDetection.SnapshotOnActivation {
		detector.SetSnapshotWriter(vision.NewOverlayWriter(cfg.Files.OutputDir))
	}

	counter := events.NewCounter()
	reporter := events.Multi{events.NewLogReporter(logger), counter}

	components := uploading.PipelineComponents{
		FileTracker: filemanagement.NewLocalFileTracker(cfg.Files.TempDir, logger),
	}

	var segmentCatalog *catalog.SQLiteCatalog
	if cfg.Catalog.Enabled {
		segmentCatalog, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		defer segmentCatalog.Close()
		components.Catalog = segmentCatalog
	}

	if cfg.Upload.Enabled {
		components.Uploader = newUploader(cfg.Upload, logger)
	}

	notifier, closeNotifiers := newNotifier(cfg, logger)
	defer closeNotifiers()
	components.Notifier = notifier

	var processor postprocessing.PostProcessor
	if cfg.PostProcessing.Enabled {
		processor = postprocessing.NewFfmpegPostProcessor(
			postprocessing.NewPostProcessingSettingsProvider(settingsProvider),
			common.NewFFmpegCodecProvider(logger),
			logger,
		)
	} else {
		processor = postprocessing.NewMoveProcessor(cfg.Files.OutputPrefix, logger)
	}

	pipeline := uploading.NewSegmentPipeline(
		vision.NewClipWriter(cfg.Files.CaptureCodec, logger),
		processor,
		components,
		uploading.PipelineSettingsFromConfig(*cfg),
		reporter,
		logger,
	)
	queue := uploading.NewSegmentQueue(pipeline, uploading.QueueSettingsFromConfig(cfg.Queue), reporter, logger)

	loop := capture.NewLoop(source, detector, queue, recording.RecordingSettingsFromConfig(*cfg), reporter, logger)

	if cfg.Status.Enabled {
		var lister status.SegmentLister
		if segmentCatalog != nil {
			lister = segmentCatalog
		}
		server := status.NewServer(detector, queue, counter, lister, logger)
		go func() {
			if err := server.Run(ctx, cfg.Status.Address); err != nil {
				logger.Error("Status server failed", "error", err)
			}
		}()
	}

	app := NewCaptureClient(loop, queue, components.FileTracker, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case <-app.Done():
		logger.Info("Capture loop finished")
	}

	err = app.Stop()

	stats := queue.Stats()
	logger.Info("Session summary",
		"frames", loop.FramesProcessed(),
		"segments_persisted", stats.Persisted,
		"segments_failed", stats.Failed,
		"segments_lost", stats.Lost)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newUploader(cfg config.UploadConfig, logger common.Logger) uploading.Uploader {
	switch cfg.Type {
	case "directory":
		return client.NewDirectoryUploader(cfg.Directory, logger)
	default:
		serverClient := client.NewCaptureServerClient(cfg.ServerURL, cfg.ClientID, cfg.ClientSecret,
			time.Duration(cfg.TimeoutSeconds)*time.Second)
		return client.NewCaptureServerUploader(serverClient, logger)
	}
}

// newNotifier combines the enabled notifiers. The returned func releases them.
func newNotifier(cfg *config.Config, logger common.Logger) (notifications.Notifier, func()) {
	var notifiers notifications.MultiNotifier
	closeFn := func() {}

	if cfg.Mail.Enabled {
		sender := notifications.NewSmtpSender(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort,
			cfg.Mail.Account.Address, cfg.Mail.Account.Password, cfg.Mail.Account.Address)
		notifiers = append(notifiers,
			notifications.NewEmailNotifier(notifications.EmailSettingsFromConfig(cfg.Mail), sender, logger))
	}

	if cfg.MQTT.Enabled {
		mqttNotifier, err := notifications.NewMQTTNotifier(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("MQTT notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, mqttNotifier)
			closeFn = mqttNotifier.Close
		}
	}

	if len(notifiers) == 0 {
		return notifications.NopNotifier, closeFn
	}
	return notifiers, closeFn
}
