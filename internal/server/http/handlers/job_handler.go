package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vipm-fulfillment/internal/pricesync"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/dto"
)

// JobHandler runs batch jobs on operator request.
type JobHandler struct {
	facade JobFacade
}

// NewJobHandler constructs JobHandler.
func NewJobHandler(facade JobFacade) *JobHandler {
	return &JobHandler{facade: facade}
}

// ProcessTransfers handles POST /api/v1/jobs/process-transfers.
func (h *JobHandler) ProcessTransfers(c *gin.Context) {
	report, err := h.facade.ProcessTransfers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CheckRunningTransfers handles POST /api/v1/jobs/check-running-transfers.
func (h *JobHandler) CheckRunningTransfers(c *gin.Context) {
	report, err := h.facade.CheckRunningTransfers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncPrices handles POST /api/v1/jobs/sync-prices. The body is optional.
func (h *JobHandler) SyncPrices(c *gin.Context) {
	var req dto.SyncPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "malformed sync request")
		return
	}

	report, err := h.facade.SyncPrices(c.Request.Context(), req.AgreementIDs, pricesync.Options{
		DryRun:   req.DryRun,
		Allow3YC: req.Allow3YC,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
