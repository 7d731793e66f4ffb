package uploading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeti47/cryospy/client/motion-client/config"
	"github.com/yeti47/cryospy/client/motion-client/events"
	"github.com/yeti47/cryospy/client/motion-client/models"
	"github.com/yeti47/cryospy/client/motion-client/recording"
)

type recordingPersister struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPersister) Persist(_ context.Context, seg *recording.Segment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, seg.ID)
	return nil
}

func (p *recordingPersister) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func segment(id string) *recording.Segment {
	return &recording.Segment{ID: id, Frames: []models.Frame{{Seq: 1}}}
}

func fastSettings(buffer int) QueueSettings {
	return QueueSettings{
		BufferSize:     buffer,
		EnqueueRetries: 1,
		EnqueueTimeout: 10 * time.Millisecond,
		DrainTimeout:   time.Second,
	}
}

func TestQueueSettingsFromConfig(t *testing.T) {
	settings := QueueSettingsFromConfig(config.DefaultConfig().Queue)

	assert.Equal(t, 3, settings.BufferSize)
	assert.Equal(t, 3, settings.EnqueueRetries)
	assert.Equal(t, 500*time.Millisecond, settings.EnqueueTimeout)
	assert.Equal(t, 30*time.Second, settings.DrainTimeout)

	empty := QueueSettingsFromConfig(config.QueueConfig{})
	assert.Equal(t, 3, empty.BufferSize)
	assert.Equal(t, 0, empty.EnqueueRetries)
}

func TestSegmentQueue_PersistsInOrder(t *testing.T) {
	persister := &recordingPersister{}
	q := NewSegmentQueue(persister, fastSettings(10), nil, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go q.Start(stop, &wg)

	var want []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("seg-%d", i)
		want = append(want, id)
		require.NoError(t, q.Enqueue(context.Background(), segment(id)))
	}

	close(stop)
	wg.Wait()

	assert.Equal(t, want, persister.IDs())
	assert.Equal(t, Stats{Queued: 5, Persisted: 5}, q.Stats())
}

func TestSegmentQueue_FullQueueLosesSegment(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	persister := PersisterFunc(func(ctx context.Context, seg *recording.Segment) error {
		started <- struct{}{}
		<-release
		return nil
	})
	q := NewSegmentQueue(persister, fastSettings(1), nil, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go q.Start(stop, &wg)

	require.NoError(t, q.Enqueue(context.Background(), segment("busy")))
	<-started
	require.NoError(t, q.Enqueue(context.Background(), segment("buffered")))

	err := q.Enqueue(context.Background(), segment("lost"))
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Lost)
	assert.Equal(t, 1, stats.Pending)

	close(release)
	<-started
	close(stop)
	wg.Wait()

	assert.Equal(t, Stats{Queued: 2, Persisted: 2, Lost: 1}, q.Stats())
}

func TestSegmentQueue_EnqueueAfterStop(t *testing.T) {
	q := NewSegmentQueue(&recordingPersister{}, fastSettings(1), nil, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go q.Start(stop, &wg)
	close(stop)
	wg.Wait()

	assert.ErrorIs(t, q.Enqueue(context.Background(), segment("late")), ErrQueueClosed)
	assert.Equal(t, uint64(1), q.Stats().Lost)
}

func TestSegmentQueue_EnqueueCancelled(t *testing.T) {
	q := NewSegmentQueue(&recordingPersister{}, QueueSettings{BufferSize: 1, EnqueueTimeout: time.Minute}, nil, nil)
	require.NoError(t, q.Enqueue(context.Background(), segment("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, segment("b")), context.Canceled)
}

func TestSegmentQueue_DrainTimeoutAbandonsRest(t *testing.T) {
	persister := PersisterFunc(func(ctx context.Context, seg *recording.Segment) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	counter := events.NewCounter()
	q := NewSegmentQueue(persister, fastSettings(3), counter, nil)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), segment(id)))
	}

	q.Drain(10 * time.Millisecond)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Persisted)
	assert.Equal(t, uint64(2), stats.Lost)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 2, counter.Count(events.SegmentLost))
}

func TestSegmentQueue_PersistFailureIsReported(t *testing.T) {
	persister := PersisterFunc(func(ctx context.Context, seg *recording.Segment) error {
		return errors.New("disk full")
	})
	counter := events.NewCounter()
	q := NewSegmentQueue(persister, fastSettings(1), counter, nil)

	require.NoError(t, q.Enqueue(context.Background(), segment("a")))
	q.Drain(time.Second)

	assert.Equal(t, uint64(1), q.Stats().Failed)
	require.Equal(t, 1, counter.Count(events.PersistenceFailure))
	last, ok := counter.LastFailure()
	require.True(t, ok)
	assert.EqualError(t, last.Err, "disk full")
}
