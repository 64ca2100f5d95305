package test

import (
	"context"
	"sync"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// TransferRepositoryStub stores migration records in-memory for tests.
type TransferRepositoryStub struct {
	Records []model.Transfer
	Saved   []model.Transfer
	Err     error
	SaveErr error

	FindFn func(context.Context, string, string, string) (*model.Transfer, error)

	mu   sync.Mutex
	next int64
}

// Create stores the record unless the membership is already registered for the product.
func (s *TransferRepositoryStub) Create(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Records {
		if r.ProductID == transfer.ProductID && r.AuthorizationID == transfer.AuthorizationID && r.MembershipID == transfer.MembershipID {
			return nil, domainErrors.ErrAlreadyExists
		}
	}
	s.next++
	created := *transfer
	created.ID = s.next
	s.Records = append(s.Records, created)
	return &created, nil
}

// FindByMembershipOrCustomer matches by membership id or backend customer id.
func (s *TransferRepositoryStub) FindByMembershipOrCustomer(ctx context.Context, productID, authorizationID, membershipOrCustomer string) (*model.Transfer, error) {
	if s.FindFn != nil {
		return s.FindFn(ctx, productID, authorizationID, membershipOrCustomer)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Records {
		if r.ProductID != productID || r.AuthorizationID != authorizationID {
			continue
		}
		if r.MembershipID == membershipOrCustomer || (r.CustomerID != "" && r.CustomerID == membershipOrCustomer) {
			record := r
			return &record, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// ListReadyToStart returns pending and rescheduled records of the product.
func (s *TransferRepositoryStub) ListReadyToStart(ctx context.Context, productID string) ([]model.Transfer, error) {
	return s.filter(productID, model.TransferStatusPending, model.TransferStatusRescheduled)
}

// ListRunning returns running records of the product.
func (s *TransferRepositoryStub) ListRunning(ctx context.Context, productID string) ([]model.Transfer, error) {
	return s.filter(productID, model.TransferStatusRunning)
}

// List returns the records of the product, optionally narrowed to one status.
func (s *TransferRepositoryStub) List(ctx context.Context, productID string, status model.TransferStatus) ([]model.Transfer, error) {
	if status == "" {
		return s.filter(productID)
	}
	return s.filter(productID, status)
}

func (s *TransferRepositoryStub) filter(productID string, statuses ...model.TransferStatus) ([]model.Transfer, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transfer
	for _, r := range s.Records {
		if r.ProductID != productID {
			continue
		}
		if len(statuses) == 0 {
			out = append(out, r)
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// Save records the update and replaces the stored record with the same id.
func (s *TransferRepositoryStub) Save(ctx context.Context, transfer *model.Transfer) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Saved = append(s.Saved, *transfer)
	for i := range s.Records {
		if s.Records[i].ID == transfer.ID {
			s.Records[i] = *transfer
			return nil
		}
	}
	return nil
}

// LastSaved returns the latest saved version of the record with id.
func (s *TransferRepositoryStub) LastSaved(id int64) *model.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Saved) - 1; i >= 0; i-- {
		if s.Saved[i].ID == id {
			record := s.Saved[i]
			return &record
		}
	}
	return nil
}

// OfferRepositoryStub keeps offers per membership.
type OfferRepositoryStub struct {
	Offers []model.Offer
	Err    error

	mu sync.Mutex
}

// KnownOfferIDs returns the offer ids already stored for the membership.
func (s *OfferRepositoryStub) KnownOfferIDs(ctx context.Context, membershipID string) (map[string]struct{}, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]struct{})
	for _, o := range s.Offers {
		if o.MembershipID == membershipID {
			known[o.OfferID] = struct{}{}
		}
	}
	return known, nil
}

// CreateMany appends the offers.
func (s *OfferRepositoryStub) CreateMany(ctx context.Context, offers []model.Offer) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Offers = append(s.Offers, offers...)
	return nil
}

// RepositoryFactoryStub exposes the stub repositories through repository.Factory.
type RepositoryFactoryStub struct {
	TransferRepo *TransferRepositoryStub
	OfferRepo    *OfferRepositoryStub
}

// Transfers returns the transfer repository stub.
func (f RepositoryFactoryStub) Transfers() repository.TransferRepository { return f.TransferRepo }

// Offers returns the offer repository stub.
func (f RepositoryFactoryStub) Offers() repository.OfferRepository { return f.OfferRepo }
