// internal/server/server.go
// Package server exposes the current detection state over HTTP for the
// presentation collaborator. The detection core stays single-threaded: the
// processing goroutine pushes snapshots in, handlers only read the latest
// snapshot, and a reset request is flagged for the pipeline to apply
// between frames.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Snapshot is the engine state as of the last processed frame.
type Snapshot struct {
	BPM       float64 `json:"bpm"`
	Valid     bool    `json:"valid"`
	State     string  `json:"state"`
	BufferLen int     `json:"buffer_len"`
	UpdatedAt int64   `json:"updated_at"`
}

// Server holds the latest snapshot and serves it over a gin router.
type Server struct {
	mu   sync.RWMutex
	snap Snapshot

	beats          atomic.Int64
	resetRequested atomic.Bool
}

// New creates a server with an empty snapshot.
func New() *Server {
	return &Server{}
}

// Update replaces the published snapshot. Called by the processing
// goroutine after each frame.
func (s *Server) Update(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// RecordBeat increments the beat counter. Called from the engine's beat
// callback.
func (s *Server) RecordBeat() {
	s.beats.Add(1)
}

// ConsumeResetRequest reports whether a reset was requested over HTTP and
// clears the flag. The pipeline polls this between frames, keeping the
// actual Reset call on the processing goroutine.
func (s *Server) ConsumeResetRequest() bool {
	return s.resetRequested.Swap(false)
}

func (s *Server) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Router builds the HTTP API.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	api.GET("/bpm", s.handleBPM)
	api.GET("/status", s.handleStatus)
	api.POST("/reset", s.handleReset)

	return r
}

// handleBPM returns the sticky estimate. The value is absent (valid=false)
// until the first in-range computation.
func (s *Server) handleBPM(c *gin.Context) {
	snap := s.snapshot()
	c.JSON(http.StatusOK, gin.H{
		"bpm":   snap.BPM,
		"valid": snap.Valid,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":      snap.State,
		"bpm":        snap.BPM,
		"valid":      snap.Valid,
		"buffer_len": snap.BufferLen,
		"updated_at": snap.UpdatedAt,
		"beats":      s.beats.Load(),
	})
}

// handleReset flags a reset for the pipeline; the engine is cleared before
// the next frame is processed.
func (s *Server) handleReset(c *gin.Context) {
	s.resetRequested.Store(true)
	c.JSON(http.StatusAccepted, gin.H{"status": "reset requested"})
}
