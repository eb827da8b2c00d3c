package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/sheeterr"
)

// recoverMiddleware maps a panicking invariant violation to a 500, following
// the programmer-error handling policy: invariants fail fast inside the
// engine, and only the HTTP boundary recovers from them.
func recoverMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("recovered from panic", zap.Any("panic", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// writeError maps the sheeterr taxonomy to an HTTP status code and JSON body.
func writeError(c *gin.Context, err error) {
	var inputErr *sheeterr.InputError
	var transientErr *sheeterr.TransientError
	switch {
	case errors.As(err, &inputErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &transientErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
