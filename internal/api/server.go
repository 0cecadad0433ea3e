package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/bot"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
)

// Server represents the webhook server
type Server struct {
	echo         *echo.Echo
	orchestrator *bot.Orchestrator
	addr         string
	shutdown     time.Duration
}

// NewServer creates a new webhook server
func NewServer(orchestrator *bot.Orchestrator, cfg config.ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("10M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request handled")
			return nil
		},
	}))

	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	server := &Server{
		echo:         e,
		orchestrator: orchestrator,
		addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		shutdown:     shutdown,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// One route per bot; the bare path serves the default bot.
	s.echo.POST("/webhook", s.handleWebhook)
	s.echo.POST("/webhook/:bot", s.handleWebhook)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().
		Str("addr", s.addr).
		Strs("bots", s.orchestrator.Registry().Names()).
		Msg("Webhook server listening")

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown stops accepting webhooks and waits for running turns up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdown)
	defer cancel()

	log.Info().Msg("Shutting down webhook server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	registry := s.orchestrator.Registry()
	stats := s.orchestrator.Stats()
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"bots":           registry.Names(),
		"erpnext_users":  registry.ERPNextUsers(),
		"conversations":  stats.Conversations,
		"total_messages": stats.TotalMessages,
	})
}
