package repository

import (
	"context"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

// OfferRepository stores renewal offers discovered while previewing transfers.
type OfferRepository interface {
	KnownOfferIDs(ctx context.Context, membershipID string) (map[string]struct{}, error)
	CreateMany(ctx context.Context, offers []model.Offer) error
}
