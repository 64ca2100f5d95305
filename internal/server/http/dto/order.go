package dto

import "github.com/polkiloo/vipm-fulfillment/internal/domain/model"

// OrderEventRequest is the marketplace webhook payload.
type OrderEventRequest struct {
	ID string `json:"id"`
}

// OrderEventResponse reports how the triggered pass left the order.
type OrderEventResponse struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// ValidationResponse carries the validated draft order back to the marketplace.
type ValidationResponse struct {
	HasErrors bool        `json:"has_errors"`
	Order     model.Order `json:"order"`
}
