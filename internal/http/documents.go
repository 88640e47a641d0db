package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// handleInsertDocument stores one document.
func (a *API) handleInsertDocument(c echo.Context) error {
	var doc vectorstore.Document
	if err := c.Bind(&doc); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid insert request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := a.store.InsertDocument(c.Request().Context(), doc)
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// handleBulkInsert stores a batch of documents, skipping duplicates.
func (a *API) handleBulkInsert(c echo.Context) error {
	var req BulkInsertRequest
	if err := c.Bind(&req); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid bulk insert request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := a.store.InsertDocuments(c.Request().Context(), req.Documents)
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// handleGetDocument fetches one document by its documentId.
func (a *API) handleGetDocument(c echo.Context) error {
	doc, err := a.store.GetDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusOK, doc)
}

// handlePatchDocument applies a partial update to one document. A patch
// that matches no document is reported as not found.
func (a *API) handlePatchDocument(c echo.Context) error {
	var patch vectorstore.DocumentPatch
	if err := c.Bind(&patch); err != nil {
		a.logger.Warn(c.Request().Context(), "invalid patch request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id := c.Param("id")
	result, err := a.store.UpdateDocument(c.Request().Context(), id, patch)
	if err != nil {
		return a.respondStoreError(c, err)
	}
	if result.MatchedCount == 0 {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not found: " + id})
	}

	return c.JSON(http.StatusOK, result)
}

// handleDeleteDocument removes one document by its documentId. Deleting an
// absent document succeeds with a zero count, matching the store contract.
func (a *API) handleDeleteDocument(c echo.Context) error {
	result, err := a.store.DeleteDocument(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.respondStoreError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
