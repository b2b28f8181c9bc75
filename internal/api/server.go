// Package api serves reconciled thread views over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/metrics"
	"github.com/restitch/internal/view"
)

// ThreadService is the slice of the view service the handlers need.
type ThreadService interface {
	LoadThread(ctx context.Context, req view.LoadRequest) (*view.ThreadView, error)
}

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	port    int
	service ThreadService
	log     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, service ThreadService, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))

	server := &Server{
		echo:    e,
		port:    cfg.Server.Port,
		service: service,
		log:     log,
	}

	server.setupRoutes(cfg.Server.AuthSecret)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(authSecret string) {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API v1 group; an empty auth secret leaves the group open
	v1 := s.echo.Group("/api/v1")
	if authSecret != "" {
		v1.Use(requireAuth(authSecret))
	}

	v1.GET("/threads/:id", s.getThread)
	v1.GET("/threads/:id/comments/:comment_id/context", s.getCommentContext)
}

// Start begins the API server and blocks until an interrupt or termination
// signal arrives, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	s.log.Info().Msg("signal received, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
