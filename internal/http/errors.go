package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// respondStoreError translates store sentinels into HTTP status codes. The
// error text is passed through untouched: it names offending fields, missing
// indexes, and expected dimensions, and clients depend on that.
func (a *API) respondStoreError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, vectorstore.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, vectorstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vectorstore.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, vectorstore.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
		c.Response().Header().Set("Retry-After", a.retryAfterSeconds())
	case errors.Is(err, vectorstore.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, vectorstore.ErrSearchUnavailable):
		status = http.StatusNotImplemented
	case errors.Is(err, vectorstore.ErrConnection):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error(c.Request().Context(), "request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

// retryAfterSeconds derives the Retry-After value from the breaker's reset
// timeout, rounded up to at least one second.
func (a *API) retryAfterSeconds() string {
	seconds := a.store.Breaker().Snapshot().ResetTimeoutMS / 1000
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}
