// Package uploading persists completed motion segments in the background:
// a bounded FIFO queue feeds a single worker that writes, post-processes,
// catalogs and uploads each segment.
package uploading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
	"github.com/yeti47/cryospy/client/motion-client/recording"
)

var (
	// ErrQueueFull is returned by Enqueue when every attempt timed out.
	ErrQueueFull = errors.New("segment queue is full")
	// ErrQueueClosed is returned by Enqueue once the queue has been stopped.
	ErrQueueClosed = errors.New("segment queue is closed")
)

// Persister stores one segment. It is called from the queue worker only.
type Persister interface {
	Persist(ctx context.Context, seg *recording.Segment) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, seg *recording.Segment) error

func (f PersisterFunc) Persist(ctx context.Context, seg *recording.Segment) error {
	return f(ctx, seg)
}

type QueueSettings struct {
	BufferSize     int
	EnqueueRetries int
	EnqueueTimeout time.Duration
	DrainTimeout   time.Duration
	PersistTimeout time.Duration // per segment while running, 0 = unbounded
}

func DefaultQueueSettings() QueueSettings {
	return QueueSettings{
		BufferSize:     3,
		EnqueueRetries: 3,
		EnqueueTimeout: 500 * time.Millisecond,
		DrainTimeout:   30 * time.Second,
		PersistTimeout: 2 * time.Minute,
	}
}

func QueueSettingsFromConfig(cfg config.QueueConfig) QueueSettings {
	settings := DefaultQueueSettings()
	if cfg.BufferSize > 0 {
		settings.BufferSize = cfg.BufferSize
	}
	if cfg.EnqueueRetries >= 0 {
		settings.EnqueueRetries = cfg.EnqueueRetries
	}
	if cfg.EnqueueTimeoutMs > 0 {
		settings.EnqueueTimeout = time.Duration(cfg.EnqueueTimeoutMs) * time.Millisecond
	}
	if cfg.DrainTimeoutSeconds > 0 {
		settings.DrainTimeout = time.Duration(cfg.DrainTimeoutSeconds) * time.Second
	}
	return settings
}

// Stats is a snapshot of the queue counters.
type Stats struct {
	Queued    uint64 `json:"queued"`
	Persisted uint64 `json:"persisted"`
	Failed    uint64 `json:"failed"`
	Lost      uint64 `json:"lost"`
	Pending   int    `json:"pending"`
}

// SegmentQueue hands segments from the capture loop to a single persistence
// worker, so segments are persisted in the order they were enqueued.
type SegmentQueue struct {
	persister Persister
	settings  QueueSettings
	jobs      chan *recording.Segment
	reporter  events.Reporter
	logger    common.Logger

	closeOnce sync.Once
	closed    chan struct{}

	queued    atomic.Uint64
	persisted atomic.Uint64
	failed    atomic.Uint64
	lost      atomic.Uint64
}

func NewSegmentQueue(persister Persister, settings QueueSettings, reporter events.Reporter, logger common.Logger) *SegmentQueue {
	if settings.BufferSize <= 0 {
		settings.BufferSize = 1
	}
	if settings.EnqueueRetries < 0 {
		settings.EnqueueRetries = 0
	}
	if reporter == nil {
		reporter = events.Nop
	}
	if logger == nil {
		logger = common.NopLogger
	}
	return &SegmentQueue{
		persister: persister,
		settings:  settings,
		jobs:      make(chan *recording.Segment, settings.BufferSize),
		reporter:  reporter,
		logger:    logger,
		closed:    make(chan struct{}),
	}
}

// Enqueue adds seg to the queue. Each of the 1 + EnqueueRetries attempts
// waits at most EnqueueTimeout for a free slot. When all attempts fail the
// segment is counted as lost and ErrQueueFull is returned.
func (q *SegmentQueue) Enqueue(ctx context.Context, seg *recording.Segment) error {
	select {
	case <-q.closed:
		q.lost.Add(1)
		return ErrQueueClosed
	default:
	}

	attempts := 1 + q.settings.EnqueueRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		timer := time.NewTimer(q.settings.EnqueueTimeout)
		select {
		case q.jobs <- seg:
			timer.Stop()
			q.queued.Add(1)
			q.logger.Debug("Queued segment", "segment_id", seg.ID, "frames", seg.Len(), "pending", len(q.jobs))
			return nil
		case <-timer.C:
			q.logger.Warn("Segment queue full", "segment_id", seg.ID, "attempt", attempt, "of", attempts)
		case <-q.closed:
			timer.Stop()
			q.lost.Add(1)
			return ErrQueueClosed
		case <-ctx.Done():
			timer.Stop()
			q.lost.Add(1)
			return ctx.Err()
		}
	}

	q.lost.Add(1)
	return ErrQueueFull
}

// Start runs the worker until stopChan is closed, then persists what is still
// queued for at most DrainTimeout. wg.Done is called on return.
func (q *SegmentQueue) Start(stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case seg := <-q.jobs:
			q.persist(context.Background(), seg)
		case <-stopChan:
			q.close()
			q.Drain(q.settings.DrainTimeout)
			return
		}
	}
}

// Drain persists queued segments until the queue is empty or timeout has
// passed. Segments left behind are counted as lost.
func (q *SegmentQueue) Drain(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case seg := <-q.jobs:
			if ctx.Err() != nil {
				q.abandon(seg)
				continue
			}
			q.persist(ctx, seg)
		default:
			return
		}
	}
}

func (q *SegmentQueue) abandon(seg *recording.Segment) {
	q.lost.Add(1)
	q.reporter.Report(events.New(events.SegmentLost, "Segment queue drain timed out", context.DeadlineExceeded,
		map[string]any{"segment_id": seg.ID, "frames": seg.Len()}))
}

func (q *SegmentQueue) close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *SegmentQueue) persist(ctx context.Context, seg *recording.Segment) {
	if q.settings.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.settings.PersistTimeout)
		defer cancel()
	}

	if err := q.persister.Persist(ctx, seg); err != nil {
		q.failed.Add(1)
		q.reporter.Report(events.New(events.PersistenceFailure, "Failed to persist segment", err,
			map[string]any{"segment_id": seg.ID, "frames": seg.Len()}))
		return
	}
	q.persisted.Add(1)
}

func (q *SegmentQueue) Stats() Stats {
	return Stats{
		Queued:    q.queued.Load(),
		Persisted: q.persisted.Load(),
		Failed:    q.failed.Load(),
		Lost:      q.lost.Load(),
		Pending:   len(q.jobs),
	}
}
