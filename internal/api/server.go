// Package api exposes the HTTP control surface: each endpoint maps a UI
// action (floor click, mode toggle, clip slider) onto the corresponding
// controller method. No business logic lives here.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/state"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/internal/view"
)

// Server is the HTTP control surface.
type Server struct {
	router *gin.Engine
	ctrl   *view.Controller
	addr   string
}

// NewServer creates the control surface over a controller.
func NewServer(ctrl *view.Controller, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{
		router: router,
		ctrl:   ctrl,
		addr:   addr,
	}
	s.setupRoutes()
	return s
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	logger.Info("control surface listening", zap.String("addr", s.addr))
	return s.router.Run(s.addr)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/state", s.handleState)

		viewGroup := api.Group("/view")
		{
			viewGroup.PUT("/level", s.handleSetLevel)
			viewGroup.PUT("/kick", s.handleSetKick)
			viewGroup.PUT("/mode", s.handleSetMode)
			viewGroup.PUT("/walls", s.handleSetWalls)
			viewGroup.PUT("/clip", s.handleSetClip)
		}

		api.PUT("/networks/:venue/visible", s.handleNetworkVisible)

		venues := api.Group("/venues")
		{
			venues.POST("/:venue/load", s.handleLoadVenue)
			venues.PUT("/:venue/tileset", s.handleTilesetStyle)
			venues.DELETE("/:venue", s.handleUnloadVenue)
		}

		api.POST("/reset", s.handleReset)
	}
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.StateSnapshot())
}

func (s *Server) handleSetLevel(c *gin.Context) {
	var req struct {
		LevelID string `json:"levelId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.SelectLevel(req.LevelID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetKick(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.SetKickMode(req.Enabled)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.ctrl.SetDimensionMode(state.Mode(req.Mode)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be 2D or 3D"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetWalls(c *gin.Context) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.SetWallsVisible(req.Visible)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSetClip(c *gin.Context) {
	var req struct {
		Enabled bool     `json:"enabled"`
		MaxZ    *float64 `json:"maxZ"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Enabled {
		s.ctrl.DisableClip()
		c.Status(http.StatusNoContent)
		return
	}
	if req.MaxZ == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maxZ required when enabled"})
		return
	}
	s.ctrl.SetClip(*req.MaxZ)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleNetworkVisible(c *gin.Context) {
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.SetNetworkVisible(c.Param("venue"), req.Visible)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTilesetStyle(c *gin.Context) {
	var req struct {
		Opacity float64 `json:"opacity"`
		Visible bool    `json:"visible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Opacity < 0 || req.Opacity > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "opacity must be in [0,1]"})
		return
	}
	s.ctrl.SetTilesetStyle(c.Param("venue"), req.Opacity, req.Visible)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLoadVenue(c *gin.Context) {
	venueID := c.Param("venue")
	if err := s.ctrl.LoadVenue(c.Request.Context(), venueID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"venueId": venueID})
}

func (s *Server) handleUnloadVenue(c *gin.Context) {
	if err := s.ctrl.UnloadVenue(c.Param("venue")); err != nil {
		if errors.Is(err, venue.ErrNotLoaded) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReset(c *gin.Context) {
	s.ctrl.Reset()
	c.Status(http.StatusNoContent)
}

// requestLogger logs each request with zap at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
