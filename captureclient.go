package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/yeti47/cryospy/client/motion-client/common"
	filemanagement "github.com/yeti47/cryospy/client/motion-client/file-management"
)

// SessionLoop is the capture loop of one camera session.
type SessionLoop interface {
	Run(ctx context.Context) error
}

// PersistenceWorker consumes completed segments until stopChan is closed.
type PersistenceWorker interface {
	Start(stopChan <-chan struct{}, wg *sync.WaitGroup)
}

// CaptureClient orchestrates the capture loop and the persistence worker.
// The loop is always stopped before the worker, so the segment flushed on
// shutdown still reaches the queue and is drained.
type CaptureClient struct {
	loop        SessionLoop
	worker      PersistenceWorker
	fileTracker filemanagement.FileTracker
	logger      common.Logger

	isRunning    bool
	mu           sync.RWMutex
	cancelLoop   context.CancelFunc
	loopDone     chan struct{}
	loopErr      error
	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

func NewCaptureClient(loop SessionLoop, worker PersistenceWorker, fileTracker filemanagement.FileTracker, logger common.Logger) *CaptureClient {
	if logger == nil {
		logger = common.NopLogger
	}
	return &CaptureClient{
		loop:         loop,
		worker:       worker,
		fileTracker:  fileTracker,
		logger:       logger,
		loopDone:     make(chan struct{}),
		shutdownChan: make(chan struct{}),
	}
}

// Start launches the persistence worker and the capture loop.
func (c *CaptureClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return fmt.Errorf("capture client is already running")
	}
	if c.cancelLoop != nil {
		return fmt.Errorf("capture client cannot be restarted")
	}

	c.logger.Info("Starting capture client")

	if err := c.fileTracker.EnsureTempDirectory(); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	if removed := c.fileTracker.CleanupTempDirectory(); removed > 0 {
		c.logger.Info("Removed stale raw clips", "count", removed)
	}

	c.wg.Add(1)
	go c.worker.Start(c.shutdownChan, &c.wg)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelLoop = cancel
	go func() {
		defer close(c.loopDone)
		c.loopErr = c.loop.Run(loopCtx)
	}()

	c.isRunning = true
	c.logger.Info("Capture client started")
	return nil
}

// Done is closed once the capture loop has returned, either on its own
// (e.g. an exhausted file source) or because Stop cancelled it.
func (c *CaptureClient) Done() <-chan struct{} {
	return c.loopDone
}

// Stop cancels the capture loop, waits for it to flush, then stops the
// worker and waits for the queue to drain. It returns the loop's error.
func (c *CaptureClient) Stop() error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	c.logger.Info("Stopping capture client")

	c.cancelLoop()
	<-c.loopDone

	close(c.shutdownChan)
	c.wg.Wait()

	c.logger.Info("Capture client stopped")
	return c.loopErr
}

func (c *CaptureClient) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}
