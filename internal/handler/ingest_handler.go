package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/request"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/response"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/service"
)

// ingestTimeout bounds one ingestion run; large corpora embed in batches and
// can take minutes.
const ingestTimeout = 10 * time.Minute

// IngestHandler exposes template ingestion and index maintenance. These are
// operator endpoints; deployments gate them at the network layer.
type IngestHandler struct {
	ingest *service.IngestService
	index  service.VectorIndex
}

func NewIngestHandler(ingest *service.IngestService, index service.VectorIndex) *IngestHandler {
	return &IngestHandler{ingest: ingest, index: index}
}

// Run handles POST /api/v1/admin/ingest.
func (h *IngestHandler) Run(c *gin.Context) {
	var req request.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(apperrors.ErrInvalidParam, "invalid request body: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
	defer cancel()

	stats, err := h.ingest.IngestDir(ctx, req.Dir)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, response.Success(stats))
}

// IndexStats handles GET /api/v1/admin/index/stats.
func (h *IngestHandler) IndexStats(c *gin.Context) {
	stats, err := h.index.Stats(c.Request.Context())
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, response.Success(stats))
}

// ClearIndex handles DELETE /api/v1/admin/index.
func (h *IngestHandler) ClearIndex(c *gin.Context) {
	if err := h.index.DeleteAll(c.Request.Context(), ""); err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"cleared": true}))
}
