// Package server provides the HTTP server lifecycle for vectord.
//
// This package implements a graceful HTTP server with Echo router,
// request-scoped logging, and context-aware shutdown. Routes are
// registered by the API layer through the Echo accessor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/config"
	"github.com/cqanalytics/vectord/internal/logging"
)

// requestIDPattern mirrors the logging package's ID rules. Client-supplied
// X-Request-ID values are attached to the logging context only when
// well-formed; malformed ones are still echoed back but not propagated.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Server represents the HTTP server.
type Server struct {
	config *config.Config
	logger *logging.Logger
	echo   *echo.Echo
}

// NewServer creates a new HTTP server with the given configuration.
//
// The server includes:
//   - Echo router for HTTP routing
//   - Recover and request ID middleware
//   - Structured request logging through the vectord logger
//   - Graceful shutdown support
//
// Example:
//
//	srv := server.NewServer(cfg, logger)
//	api.RegisterRoutes(srv.Echo(), store)
//	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
//	    log.Fatal(err)
//	}
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	e := echo.New()

	// Disable Echo's default banner and port logging
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext())
	e.Use(requestLogger(logger))

	return &Server{
		config: cfg,
		logger: logger,
		echo:   e,
	}
}

// requestContext propagates the request ID into the request context so
// every log line emitted while handling the request carries request.id.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestIDPattern.MatchString(requestID) {
				req := c.Request()
				ctx := logging.WithRequestID(req.Context(), requestID)
				c.SetRequest(req.WithContext(ctx))
			}
			return next(c)
		}
	}
}

// requestLogger logs one structured line per request.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	}
}

// Start starts the HTTP server and blocks until context is cancelled.
//
// The server listens on the port specified in the configuration.
// When the context is cancelled, the server performs graceful shutdown
// with the configured timeout.
//
// Returns http.ErrServerClosed on graceful shutdown, or any other
// error encountered during startup or shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	// Channel to receive server errors
	errCh := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Context cancelled, perform graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.Server.ShutdownTimeout.Duration(),
		)
		defer cancel()

		s.logger.Info(shutdownCtx, "shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering routes.
//
// Example:
//
//	srv := server.NewServer(cfg, logger)
//	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
