// Package http provides the HTTP API for vectord.
package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cqanalytics/vectord/internal/logging"
	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// API exposes the vector store over HTTP.
type API struct {
	store   *vectorstore.Store
	logger  *logging.Logger
	metrics *HTTPMetrics
	version string
}

// NewAPI creates the HTTP API around an assembled store.
func NewAPI(store *vectorstore.Store, logger *logging.Logger, version string) (*API, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	return &API{
		store:   store,
		logger:  logger,
		metrics: NewHTTPMetrics(logger.Underlying()),
		version: version,
	}, nil
}

// RegisterRoutes sets up the HTTP endpoints.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.Use(a.metrics.MetricsMiddleware())

	// Liveness and readiness
	e.GET("/health", a.handleHealth)
	e.GET("/healthz", a.handleHealthz)
	e.GET("/readyz", a.handleReadyz)

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/stats", a.handleStats)
	v1.POST("/documents", a.handleInsertDocument)
	v1.POST("/documents/bulk", a.handleBulkInsert)
	v1.GET("/documents/:id", a.handleGetDocument)
	v1.PATCH("/documents/:id", a.handlePatchDocument)
	v1.DELETE("/documents/:id", a.handleDeleteDocument)
	v1.POST("/search/vector", a.handleVectorSearch)
	v1.POST("/search/text", a.handleTextSearch)
	v1.POST("/search/hybrid", a.handleHybridSearch)
}

// handleHealth reports process liveness. It says nothing about the store;
// use /healthz for that.
func (a *API) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "vectord",
		Version: a.version,
	})
}

// handleHealthz reports store health as data. The status code is 200 even
// when the store is degraded or unhealthy: the body carries the state, and a
// scraper that cannot tell degraded from down should read it.
func (a *API) handleHealthz(c echo.Context) error {
	health := a.store.HealthCheck(c.Request().Context())
	return c.JSON(http.StatusOK, health)
}

// handleReadyz gates load-balancer traffic: 503 until the store is
// initialized and connected.
func (a *API) handleReadyz(c echo.Context) error {
	health := a.store.HealthCheck(c.Request().Context())
	if health.Status != vectorstore.HealthHealthy {
		return c.JSON(http.StatusServiceUnavailable, health)
	}
	return c.JSON(http.StatusOK, health)
}

// handleStats returns the aggregated operational snapshot.
func (a *API) handleStats(c echo.Context) error {
	stats := a.store.GetStats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}
