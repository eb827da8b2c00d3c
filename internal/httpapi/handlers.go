package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garry00107/sheetrag/internal/chunk"
	"github.com/garry00107/sheetrag/internal/engine"
	"github.com/garry00107/sheetrag/internal/sheeterr"
)

type handlers struct {
	engine *engine.Engine
	logger *zap.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type addDocumentRequest struct {
	Source   string         `json:"source"`
	DocType  string         `json:"doc_type"`
	Metadata map[string]any `json:"metadata"`
	Content  string         `json:"content" binding:"required"`
}

func (h *handlers) ingestDocument(c *gin.Context) {
	var req addDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, sheeterr.NewInput("ingest_document", err))
		return
	}

	docID := uuid.NewString()

	doc := chunk.Document{
		ID:       docID,
		Source:   req.Source,
		DocType:  req.DocType,
		Content:  req.Content,
		Metadata: req.Metadata,
	}

	if err := h.engine.Ingest(c.Request.Context(), doc); err != nil {
		h.logger.Warn("ingest failed", zap.Error(err), zap.String("source", req.Source))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "document ingested", "document_id": docID, "source": req.Source})
}

type queryRequest struct {
	Query              string `json:"query" binding:"required"`
	TopK               int    `json:"top_k"`
	UseCrossValidation *bool  `json:"use_cross_validation"`
}

func (h *handlers) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, sheeterr.NewInput("query", err))
		return
	}

	useCrossValidation := true
	if req.UseCrossValidation != nil {
		useCrossValidation = *req.UseCrossValidation
	}

	result, err := h.engine.Query(c.Request.Context(), req.Query, req.TopK, useCrossValidation)
	if err != nil {
		h.logger.Warn("query failed", zap.Error(err), zap.String("query", req.Query))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handlers) stats(c *gin.Context) {
	result, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) clearAll(c *gin.Context) {
	if err := h.engine.ClearAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all collections cleared"})
}

func (h *handlers) clearLayer(c *gin.Context) {
	level := chunk.Level(c.Param("level"))
	if err := h.engine.ClearLayer(c.Request.Context(), level); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "collection cleared", "level": level})
}
