// Package status serves a small read-only HTTP view of a running capture
// session.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryospy/client/motion-client/catalog"
	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/events"
	motiondetection "github.com/yeti47/cryospy/client/motion-client/motion-detection"
	"github.com/yeti47/cryospy/client/motion-client/uploading"
)

const defaultSegmentLimit = 20

type DetectorStatus interface {
	Status() motiondetection.Status
}

type QueueStats interface {
	Stats() uploading.Stats
}

type EventCounts interface {
	Counts() map[events.Kind]int
}

type SegmentLister interface {
	List(ctx context.Context, limit int) ([]catalog.Entry, error)
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Motion motiondetection.Status `json:"motion"`
	Queue  uploading.Stats        `json:"queue"`
	Events map[events.Kind]int    `json:"events"`
}

type Server struct {
	detector DetectorStatus
	queue    QueueStats
	counts   EventCounts
	segments SegmentLister
	logger   common.Logger
	router   *gin.Engine
}

// NewServer builds the router. segments may be nil when no catalog is kept.
func NewServer(detector DetectorStatus, queue QueueStats, counts EventCounts, segments SegmentLister, logger common.Logger) *Server {
	if logger == nil {
		logger = common.NopLogger
	}
	if segments == nil {
		segments = catalog.NopCatalog{}
	}

	s := &Server{
		detector: detector,
		queue:    queue,
		counts:   counts,
		segments: segments,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	s.setupRoutes(router)
	s.router = router
	return s
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "motion-client",
		})
	})
	router.GET("/status", s.GetStatus)
	router.GET("/segments", s.GetSegments)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetStatus handles GET /status
func (s *Server) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Motion: s.detector.Status(),
		Queue:  s.queue.Stats(),
		Events: s.counts.Counts(),
	})
}

// GetSegments handles GET /segments?limit=N
func (s *Server) GetSegments(c *gin.Context) {
	limit := defaultSegmentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := s.segments.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list segments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"segments": entries})
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting status server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("Status server stopped")
		return nil
	}
}
