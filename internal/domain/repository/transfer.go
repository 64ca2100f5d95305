package repository

import (
	"context"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// TransferRepository persists membership migration records.
type TransferRepository interface {
	Create(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error)
	// FindByMembershipOrCustomer returns the record migrating membershipOrCustomer under the
	// product and authorization, matching either the membership id or the backend customer id.
	FindByMembershipOrCustomer(ctx context.Context, productID, authorizationID, membershipOrCustomer string) (*model.Transfer, error)
	ListReadyToStart(ctx context.Context, productID string) ([]model.Transfer, error)
	ListRunning(ctx context.Context, productID string) ([]model.Transfer, error)
	List(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error)
	Save(ctx context.Context, transfer *model.Transfer) error
}
