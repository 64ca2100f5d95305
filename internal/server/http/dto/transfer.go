package dto

import (
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// TransferRequest registers a membership for batch migration.
type TransferRequest struct {
	ProductID       string `json:"product_id"`
	AuthorizationID string `json:"authorization_id"`
	SellerID        string `json:"seller_id"`
	MembershipID    string `json:"membership_id"`
}

// TransferResponse describes a stored migration record.
type TransferResponse struct {
	ID                int64      `json:"id"`
	ProductID         string     `json:"product_id"`
	AuthorizationID   string     `json:"authorization_id"`
	SellerID          string     `json:"seller_id,omitempty"`
	MembershipID      string     `json:"membership_id"`
	TransferID        string     `json:"transfer_id,omitempty"`
	CustomerID        string     `json:"customer_id,omitempty"`
	Status            string     `json:"status"`
	RetryCount        int        `json:"retry_count"`
	RescheduleCount   int        `json:"reschedule_count"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorDescription  string     `json:"error_description,omitempty"`
	StatusDescription string     `json:"status_description,omitempty"`
	MPTOrderID        string     `json:"mpt_order_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	SynchronizedAt    *time.Time `json:"synchronized_at,omitempty"`
}

// NewTransferResponse maps a domain record to its wire form.
func NewTransferResponse(t model.Transfer) TransferResponse {
	return TransferResponse{
		ID:                t.ID,
		ProductID:         t.ProductID,
		AuthorizationID:   t.AuthorizationID,
		SellerID:          t.SellerID,
		MembershipID:      t.MembershipID,
		TransferID:        t.TransferID,
		CustomerID:        t.CustomerID,
		Status:            string(t.Status),
		RetryCount:        t.RetryCount,
		RescheduleCount:   t.RescheduleCount,
		ErrorCode:         t.ErrorCode,
		ErrorDescription:  t.ErrorDescription,
		StatusDescription: t.StatusDescription,
		MPTOrderID:        t.MPTOrderID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		CompletedAt:       t.CompletedAt,
		SynchronizedAt:    t.SynchronizedAt,
	}
}
