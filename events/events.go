// Package events reports what happens in a capture session. Every failure is
// reported as an Event so nothing is swallowed silently.
package events

import (
	"maps"
	"sync"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

type Kind string

const (
	StreamReadFailure  Kind = "stream_read_failure"
	ExtractionFailure  Kind = "extraction_failure"
	PersistenceFailure Kind = "persistence_failure"
	SegmentLost        Kind = "segment_lost"

	MotionStarted    Kind = "motion_started"
	MotionStopped    Kind = "motion_stopped"
	SegmentCompleted Kind = "segment_completed"
	SegmentDiscarded Kind = "segment_discarded"
	SegmentPersisted Kind = "segment_persisted"
)

// IsFailure reports whether k describes an error.
func (k Kind) IsFailure() bool {
	switch k {
	case StreamReadFailure, ExtractionFailure, PersistenceFailure, SegmentLost:
		return true
	}
	return false
}

type Event struct {
	Kind    Kind
	Time    time.Time
	Message string
	Err     error
	Context map[string]any
}

// New creates an event stamped with the current time.
func New(kind Kind, message string, err error, context map[string]any) Event {
	return Event{Kind: kind, Time: time.Now(), Message: message, Err: err, Context: context}
}

// Reporter receives events. Implementations must be safe for concurrent use
// since capture and persistence report from different goroutines.
type Reporter interface {
	Report(e Event)
}

// LogReporter writes events to a logger, failures at error level.
type LogReporter struct {
	logger common.Logger
}

func NewLogReporter(logger common.Logger) *LogReporter {
	if logger == nil {
		logger = common.NopLogger
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(e Event) {
	args := make([]any, 0, 2*len(e.Context)+4)
	args = append(args, "event", string(e.Kind))
	if e.Err != nil {
		args = append(args, "error", e.Err)
	}
	for k, v := range e.Context {
		args = append(args, k, v)
	}

	if e.Kind.IsFailure() {
		r.logger.Error(e.Message, args...)
	} else {
		r.logger.Info(e.Message, args...)
	}
}

// Counter counts events per kind and remembers the last failure.
type Counter struct {
	mu          sync.RWMutex
	counts      map[Kind]int
	lastFailure *Event
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[Kind]int)}
}

func (c *Counter) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[e.Kind]++
	if e.Kind.IsFailure() {
		last := e
		c.lastFailure = &last
	}
}

// Count returns how many events of kind were reported.
func (c *Counter) Count(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[kind]
}

// Counts returns a copy of all counters.
func (c *Counter) Counts() map[Kind]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[Kind]int, len(c.counts))
	maps.Copy(out, c.counts)
	return out
}

// LastFailure returns the most recent failure event, if any.
func (c *Counter) LastFailure() (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastFailure == nil {
		return Event{}, false
	}
	return *c.lastFailure, true
}

// Multi forwards every event to all reporters.
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// Nop discards events.
var Nop Reporter = nopReporter{}
