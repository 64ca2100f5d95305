package usecase

import (
	"context"
	"strings"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// TransferUseCase manages batch migration records.
type TransferUseCase struct {
	transfers repository.TransferRepository
	products  []string
}

// NewTransferUseCase constructs TransferUseCase for the served products.
func NewTransferUseCase(transfers repository.TransferRepository, products []string) *TransferUseCase {
	return &TransferUseCase{transfers: transfers, products: products}
}

// Register schedules a membership for migration. Registering the same membership twice
// for a product and authorization returns ErrAlreadyExists.
func (u *TransferUseCase) Register(ctx context.Context, in model.TransferRegistration) (*model.Transfer, error) {
	membershipID := strings.TrimSpace(in.MembershipID)
	if !ValidateMembershipID(membershipID) {
		return nil, domainErrors.ErrInvalidMembershipID
	}
	if !u.serves(in.ProductID) {
		return nil, domainErrors.ErrInvalidProduct
	}
	if strings.TrimSpace(in.AuthorizationID) == "" {
		return nil, domainErrors.ErrInvalidAuthorization
	}

	return u.transfers.Create(ctx, &model.Transfer{
		ProductID:       in.ProductID,
		AuthorizationID: strings.TrimSpace(in.AuthorizationID),
		SellerID:        strings.TrimSpace(in.SellerID),
		MembershipID:    membershipID,
		Status:          model.TransferStatusPending,
	})
}

// List returns the records of the product, optionally narrowed to one status.
func (u *TransferUseCase) List(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error) {
	if !u.serves(productID) {
		return nil, domainErrors.ErrInvalidProduct
	}
	if status != "" && !status.Valid() {
		return nil, domainErrors.ErrInvalidStatus
	}
	return u.transfers.List(ctx, productID, status)
}

func (u *TransferUseCase) serves(productID string) bool {
	for _, id := range u.products {
		if id == productID {
			return true
		}
	}
	return false
}
