package events

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

func TestCounter(t *testing.T) {
	c := NewCounter()

	_, ok := c.LastFailure()
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(New(MotionStarted, "motion", nil, nil))
		}()
	}
	wg.Wait()

	c.Report(New(PersistenceFailure, "upload failed", errors.New("boom"), map[string]any{"segment_id": "abc"}))

	assert.Equal(t, 10, c.Count(MotionStarted))
	assert.Equal(t, 1, c.Counts()[PersistenceFailure])

	last, ok := c.LastFailure()
	assert.True(t, ok)
	assert.Equal(t, PersistenceFailure, last.Kind)
	assert.Equal(t, "abc", last.Context["segment_id"])
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(common.NewWriterLogger(&buf, common.LogLevelDebug))

	r.Report(New(StreamReadFailure, "camera gone", errors.New("eof"), map[string]any{"frames": 12}))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"event":"stream_read_failure"`)
	assert.Contains(t, out, `"error":"eof"`)
	assert.Contains(t, out, `"frames":12`)
}

func TestMulti(t *testing.T) {
	a, b := NewCounter(), NewCounter()
	Multi{a, nil, b, Nop}.Report(New(SegmentLost, "queue full", nil, nil))

	assert.Equal(t, 1, a.Count(SegmentLost))
	assert.Equal(t, 1, b.Count(SegmentLost))
}

func TestKind_IsFailure(t *testing.T) {
	assert.True(t, ExtractionFailure.IsFailure())
	assert.True(t, SegmentLost.IsFailure())
	assert.False(t, SegmentPersisted.IsFailure())
}
