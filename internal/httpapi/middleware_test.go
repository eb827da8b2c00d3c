package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/sheeterr"
)

func TestRecoverMiddleware_TurnsInvariantPanicInto500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(recoverMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) {
		panic(sheeterr.Invariant("chunk tree: non-summary node %s has no parent", "sentence_bad"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
