package uploading

import (
	"context"
	"fmt"

	"github.com/yeti47/cryospy/client/motion-client/catalog"
	"github.com/yeti47/cryospy/client/motion-client/client"
	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
	filemanagement "github.com/yeti47/cryospy/client/motion-client/file-management"
	"github.com/yeti47/cryospy/client/motion-client/notifications"
	postprocessing "github.com/yeti47/cryospy/client/motion-client/post-processing"
	"github.com/yeti47/cryospy/client/motion-client/recording"
)

// DefaultCategory is the upload category of motion segments.
const DefaultCategory = "motion_detections"

// Uploader sends a persisted clip somewhere else.
type Uploader interface {
	Upload(ctx context.Context, request client.UploadRequest) error
}

type PipelineSettings struct {
	TempDir   string
	OutputDir string
	Category  string
}

func PipelineSettingsFromConfig(cfg config.Config) PipelineSettings {
	category := cfg.Upload.Category
	if category == "" {
		category = DefaultCategory
	}
	return PipelineSettings{
		TempDir:   cfg.Files.TempDir,
		OutputDir: cfg.Files.OutputDir,
		Category:  category,
	}
}

// PipelineComponents are the optional collaborators of a SegmentPipeline.
// A nil Uploader disables uploading; other nil fields get no-op defaults.
type PipelineComponents struct {
	Catalog     catalog.Catalog
	Uploader    Uploader
	Notifier    notifications.Notifier
	FileTracker filemanagement.FileTracker
}

// SegmentPipeline implements Persister: it writes the raw clip, turns it into
// the final clip, records it in the catalog, uploads it and sends a notification.
// Only write and post-processing failures fail the segment; the final clip
// stays on disk when a later step fails.
type SegmentPipeline struct {
	writer    recording.SegmentWriter
	processor postprocessing.PostProcessor
	catalog   catalog.Catalog
	uploader  Uploader
	notifier  notifications.Notifier
	files     filemanagement.FileTracker
	settings  PipelineSettings
	reporter  events.Reporter
	logger    common.Logger
}

func NewSegmentPipeline(
	writer recording.SegmentWriter,
	processor postprocessing.PostProcessor,
	components PipelineComponents,
	settings PipelineSettings,
	reporter events.Reporter,
	logger common.Logger,
) *SegmentPipeline {
	if logger == nil {
		logger = common.NopLogger
	}
	if reporter == nil {
		reporter = events.Nop
	}
	if settings.Category == "" {
		settings.Category = DefaultCategory
	}

	p := &SegmentPipeline{
		writer:    writer,
		processor: processor,
		catalog:   components.Catalog,
		uploader:  components.Uploader,
		notifier:  components.Notifier,
		files:     components.FileTracker,
		settings:  settings,
		reporter:  reporter,
		logger:    logger,
	}
	if p.catalog == nil {
		p.catalog = catalog.NopCatalog{}
	}
	if p.notifier == nil {
		p.notifier = notifications.NopNotifier
	}
	if p.files == nil {
		p.files = filemanagement.NewLocalFileTracker(settings.TempDir, logger)
	}
	return p
}

func (p *SegmentPipeline) Persist(ctx context.Context, seg *recording.Segment) error {
	rawClip, err := p.writer.Write(ctx, seg, p.settings.TempDir)
	if err != nil {
		return fmt.Errorf("failed to write segment %s: %w", seg.ID, err)
	}

	clip, err := p.processor.ProcessVideo(ctx, rawClip, p.settings.OutputDir)
	if err != nil {
		p.files.DeleteFile(rawClip.Path)
		return fmt.Errorf("failed to process segment %s: %w", seg.ID, err)
	}
	if clip.Path != rawClip.Path {
		p.files.DeleteFile(rawClip.Path)
	}

	p.logger.Info("Persisted segment", "segment_id", seg.ID, "path", clip.Path, "frames", seg.Len(),
		"duration", clip.Duration, "reason", string(seg.Reason))

	entry := catalog.Entry{
		ID:          seg.ID,
		StartedAt:   seg.StartedAt,
		CompletedAt: seg.CompletedAt,
		Frames:      seg.Len(),
		FrameRate:   seg.FrameRate,
		Width:       seg.Dimensions.Width,
		Height:      seg.Dimensions.Height,
		Reason:      string(seg.Reason),
		ClipPath:    clip.Path,
		Status:      catalog.StatusWritten,
	}
	if err := p.catalog.Add(ctx, entry); err != nil {
		p.fail("catalog", seg, err)
	}

	p.upload(ctx, seg, clip)

	p.reporter.Report(events.New(events.SegmentPersisted, "Segment persisted", nil,
		map[string]any{"segment_id": seg.ID, "path": clip.Path}))

	message := clip.Timestamp.Format("2006-01-02 15:04:05 MST")
	if err := p.notifier.Notify(ctx, events.SegmentPersisted, message); err != nil {
		p.fail("notify", seg, err)
	}

	return nil
}

func (p *SegmentPipeline) upload(ctx context.Context, seg *recording.Segment, clip *postprocessing.VideoClip) {
	if p.uploader == nil {
		return
	}

	err := p.uploader.Upload(ctx, client.UploadRequest{
		Path:       clip.Path,
		Category:   p.settings.Category,
		RecordedAt: clip.Timestamp,
		Duration:   clip.Duration,
	})
	if err != nil {
		p.fail("upload", seg, err)
		if err := p.catalog.MarkFailed(ctx, seg.ID, err.Error()); err != nil {
			p.logger.Warn("Failed to update catalog", "segment_id", seg.ID, "error", err)
		}
		return
	}

	if err := p.catalog.MarkUploaded(ctx, seg.ID); err != nil {
		p.logger.Warn("Failed to update catalog", "segment_id", seg.ID, "error", err)
	}
}

func (p *SegmentPipeline) fail(step string, seg *recording.Segment, err error) {
	p.reporter.Report(events.New(events.PersistenceFailure, fmt.Sprintf("Segment %s step failed", step), err,
		map[string]any{"segment_id": seg.ID, "step": step, "recoverable": client.IsRecoverableUploadError(err)}))
}
