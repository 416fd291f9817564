package handlers

import (
	"context"
	"cycle-nav-service/internal/domain"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrMalformedRoute),
		errors.Is(err, domain.ErrUnsupportedPositionSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoRoute),
		errors.Is(err, domain.ErrNavigationActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRouteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTagResolution),
		errors.Is(err, domain.ErrPositionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError responds with the status matching err. Unclassified
// errors are logged and hidden from the client.
func writeDomainError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, status, "internal server error")
		return
	}
	if status >= 500 {
		log.Warn("upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
	}
	writeError(c, status, err.Error())
}

// parseDimensions reads the optional "dimension" query parameter. Without
// it every dimension is returned.
func parseDimensions(c *gin.Context) ([]domain.TagDimension, bool) {
	q := c.Query("dimension")
	if q == "" {
		return domain.Dimensions, true
	}
	d, err := domain.ParseTagDimension(q)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return []domain.TagDimension{d}, true
}
