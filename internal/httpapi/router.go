// Package httpapi exposes engine.Engine over HTTP using gin, following the
// teacher pack's health/collections/documents/query route grouping.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/engine"
)

// NewRouter builds the gin engine wired to eng. recoverMiddleware turns a
// panic (an *sheeterr.InvariantError, by convention) into a 500 instead of
// crashing the process, per the programmer-error handling policy.
func NewRouter(eng *engine.Engine, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), recoverMiddleware(logger))

	h := &handlers{engine: eng, logger: logger}

	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/documents", h.ingestDocument)
		v1.POST("/query", h.query)
		v1.GET("/stats", h.stats)
		v1.DELETE("/collections", h.clearAll)
		v1.DELETE("/collections/:level", h.clearLayer)
	}

	return r
}
