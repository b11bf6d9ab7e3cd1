// Package server exposes the read-only HTTP surface of a running arena:
// rankings, engines, recent games, loop status and a live websocket feed.
package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"ugi-arena/internal/events"
	"ugi-arena/internal/scheduler"
	"ugi-arena/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server serves the arena API
type Server struct {
	store store.Store
	hub   *events.Hub
	sched *scheduler.Scheduler // nil when serving without a tournament loop
}

// New creates an API server. sched may be nil for serve-api runs.
func New(st store.Store, hub *events.Hub, sched *scheduler.Scheduler) *Server {
	return &Server{store: st, hub: hub, sched: sched}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	api := router.Group("/api")
	{
		api.GET("/rankings", s.handleRankings)
		api.GET("/engines", s.handleEngines)
		api.GET("/games", s.handleGames)
		api.GET("/status", s.handleStatus)
	}
	router.GET("/ws/live", s.handleLive)

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRankings(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	engines, err := s.store.ListEngines()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if limit > 0 && len(engines) > limit {
		engines = engines[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"rankings": engines})
}

func (s *Server) handleEngines(c *gin.Context) {
	stats, err := s.store.GetEnginesForScheduling()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"engines": stats})
}

func (s *Server) handleGames(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	games, err := s.store.GetGames(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := scheduler.Status{}
	if s.sched != nil {
		status = s.sched.Status()
	}
	c.JSON(http.StatusOK, status)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
