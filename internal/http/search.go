package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// handleVectorSearch runs nearest-neighbour search over embeddings.
func (a *API) handleVectorSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid vector search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	results, err := a.store.VectorSearch(c.Request().Context(), req.Vector, req.options())
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// handleTextSearch runs keyword search over document content.
func (a *API) handleTextSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid text search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	results, err := a.store.TextSearch(c.Request().Context(), req.Query, req.options())
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// handleHybridSearch blends vector and text rankings.
func (a *API) handleHybridSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid hybrid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	opts := vectorstore.HybridOptions{
		SearchOptions: req.options(),
		VectorWeight:  req.VectorWeight,
		TextWeight:    req.TextWeight,
	}
	results, err := a.store.HybridSearch(c.Request().Context(), req.Vector, req.Query, opts)
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}
