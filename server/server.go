// Package server exposes the discovery pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"discoveryserver/config"
	"discoveryserver/database"
	"discoveryserver/server/services"
	"discoveryserver/upstream"
)

// Server owns the HTTP surface and its dependencies.
type Server struct {
	config     *config.Config
	service    *services.DiscoveryService
	locations  *database.LocationDB
	cache      *upstream.QueryCache
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer wires the HTTP layer. cache may be nil when caching is
// disabled; the cache endpoints then report it as such.
func NewServer(cfg *config.Config, service *services.DiscoveryService, locations *database.LocationDB, cache *upstream.QueryCache) *Server {
	return &Server{
		config:    cfg,
		service:   service,
		locations: locations,
		cache:     cache,
		logger:    slog.Default().With("component", "http_server"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	api := router.Group("/api")
	{
		runs := api.Group("/discovery/runs")
		{
			runs.POST("", s.handleStartRun)
			runs.GET("", s.handleListRuns)
			runs.GET("/:id", s.handleGetRun)
			runs.GET("/:id/export", s.handleExportRun)
		}

		locations := api.Group("/locations")
		{
			locations.GET("", s.handleListLocations)
			locations.GET("/:id", s.handleGetLocation)
			locations.PATCH("/:id/status", s.handleUpdateLocationStatus)
		}

		cache := api.Group("/cache")
		{
			cache.GET("/stats", s.handleCacheStats)
			cache.POST("/clear", s.handleCacheClear)
		}

		api.GET("/health", s.handleHealth)
	}

	return router
}

// Start runs the HTTP server until it is shut down. Export downloads
// can take a while, so the write timeout is generous.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("http server starting", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}
