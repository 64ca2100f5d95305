package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/dto"
)

// TransferHandler exposes the batch migration registry.
type TransferHandler struct {
	facade TransferFacade
}

// NewTransferHandler constructs TransferHandler.
func NewTransferHandler(facade TransferFacade) *TransferHandler {
	return &TransferHandler{facade: facade}
}

// Register handles POST /api/v1/transfers.
func (h *TransferHandler) Register(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed transfer request")
		return
	}

	record, err := h.facade.RegisterTransfer(c.Request.Context(), model.TransferRegistration{
		ProductID:       req.ProductID,
		AuthorizationID: req.AuthorizationID,
		SellerID:        req.SellerID,
		MembershipID:    req.MembershipID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewTransferResponse(*record))
}

// List handles GET /api/v1/transfers?product_id=&status=.
func (h *TransferHandler) List(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		badRequest(c, "product_id is required")
		return
	}

	transfers, err := h.facade.Transfers(c.Request.Context(), productID, model.TransferStatus(c.Query("status")))
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]dto.TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		response = append(response, dto.NewTransferResponse(t))
	}
	c.JSON(http.StatusOK, response)
}
