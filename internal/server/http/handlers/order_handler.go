package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/server/http/dto"
)

// OrderHandler serves the marketplace facing order endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Event handles POST /api/v1/events/orders.
func (h *OrderHandler) Event(c *gin.Context) {
	var req dto.OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed order event")
		return
	}
	orderID := strings.TrimSpace(req.ID)
	if orderID == "" {
		badRequest(c, "order id is required")
		return
	}

	out, err := h.facade.ProcessOrderByID(c.Request.Context(), orderID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OrderEventResponse{
		OrderID: orderID,
		Outcome: string(out.Kind),
		Reason:  out.Reason,
	})
}

// Validate handles POST /api/v1/orders/validate.
func (h *OrderHandler) Validate(c *gin.Context) {
	var order model.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		badRequest(c, "malformed order")
		return
	}

	hasErrors, err := h.facade.ValidateOrder(c.Request.Context(), &order)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ValidationResponse{HasErrors: hasErrors, Order: order})
}
