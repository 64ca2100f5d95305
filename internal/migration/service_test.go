package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	testhelpers "github.com/polkiloo/vipm-fulfillment/internal/test"
)

var fixedNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	backend   *testhelpers.BackendStub
	transfers *testhelpers.TransferRepositoryStub
	offers    *testhelpers.OfferRepositoryStub
	publisher *testhelpers.PublisherStub
	service   *Service
}

func newFixture(records ...model.Transfer) *fixture {
	f := &fixture{
		backend:   &testhelpers.BackendStub{},
		transfers: &testhelpers.TransferRepositoryStub{Records: records},
		offers:    &testhelpers.OfferRepositoryStub{},
		publisher: &testhelpers.PublisherStub{},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f.service = NewService(f.backend, f.transfers, f.offers, f.publisher, []string{"PRD-1"}, Limits{RunningRetries: 3, Reschedules: 2}, logger)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func record(id int64, membership string, status model.TransferStatus) model.Transfer {
	return model.Transfer{
		ID:              id,
		ProductID:       "PRD-1",
		AuthorizationID: "AUT-1",
		SellerID:        "SEL-1",
		MembershipID:    membership,
		Status:          status,
	}
}

func TestStartTransfersCreatesBackendTransfer(t *testing.T) {
	f := newFixture(record(7, "MEM-1", model.TransferStatusPending))
	f.offers.Offers = []model.Offer{{MembershipID: "MEM-1", OfferID: "65304578CA01A12"}}
	f.backend.PreviewTransferFn = func(context.Context, string, string) (*model.TransferPreview, error) {
		return &model.TransferPreview{Items: []model.BackendItem{
			{OfferID: "65304578CA01A12", Quantity: 5, RenewalDate: "2025-06-01"},
			{OfferID: "65322651CA01A12", Quantity: 2, RenewalDate: "2025-07-01"},
		}}, nil
	}
	var orderID string
	f.backend.CreateTransferFn = func(_ context.Context, _, sellerID, id, _ string) (*model.BackendTransfer, error) {
		if sellerID != "SEL-1" {
			t.Fatalf("unexpected seller %s", sellerID)
		}
		orderID = id
		return &model.BackendTransfer{TransferID: "TRF-7", Status: model.BackendStatusPending}, nil
	}

	report, err := f.service.ProcessTransfers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "7" {
		t.Fatalf("expected record id as order id, got %q", orderID)
	}
	saved := f.transfers.LastSaved(7)
	if saved == nil || saved.Status != model.TransferStatusRunning || saved.TransferID != "TRF-7" {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if !saved.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("expected updated at to be set, got %v", saved.UpdatedAt)
	}
	if len(f.offers.Offers) != 2 || f.offers.Offers[1].OfferID != "65322651CA01A12" || f.offers.Offers[1].RenewalDate != "2025-07-01" {
		t.Fatalf("expected only the unknown offer to be stored, got %+v", f.offers.Offers)
	}
	if report.Seen != 1 || report.Statuses[model.TransferStatusRunning] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if types := f.publisher.Types(); len(types) != 1 || types[0] != events.EventTransferStatus {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestStartTransfersPreviewErrors(t *testing.T) {
	cases := []struct {
		name            string
		err             error
		rescheduleCount int
		wantStatus      model.TransferStatus
		wantDescription string
		wantReschedules int
	}{
		{
			name:            "transient",
			err:             &domainErrors.BackendError{Kind: domainErrors.KindRecoverable, Code: "5118", Message: "Cannot transfer", Details: []string{"RETURNABLE_PURCHASE"}},
			wantStatus:      model.TransferStatusRescheduled,
			wantDescription: msgPreviewTransient,
			wantReschedules: 1,
		},
		{
			name:            "transient exhausted",
			err:             &domainErrors.BackendError{Kind: domainErrors.KindRecoverable, Code: "5118", Message: "Cannot transfer", Details: []string{"IN_WINDOW_NO_RENEWAL"}},
			rescheduleCount: 1,
			wantStatus:      model.TransferStatusFailed,
			wantDescription: "Max reschedules (2) exceeded.",
			wantReschedules: 2,
		},
		{
			name:            "unrecoverable",
			err:             &domainErrors.BackendError{Kind: domainErrors.KindValidation, Code: "5115", Message: "Membership is invalid"},
			wantStatus:      model.TransferStatusFailed,
			wantDescription: msgPreviewFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := record(1, "MEM-1", model.TransferStatusPending)
			rec.RescheduleCount = tc.rescheduleCount
			f := newFixture(rec)
			f.backend.PreviewTransferFn = func(context.Context, string, string) (*model.TransferPreview, error) {
				return nil, tc.err
			}

			if _, err := f.service.StartTransfers(context.Background(), "PRD-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			saved := f.transfers.LastSaved(1)
			if saved == nil || saved.Status != tc.wantStatus || saved.StatusDescription != tc.wantDescription {
				t.Fatalf("unexpected saved record %+v", saved)
			}
			if saved.RescheduleCount != tc.wantReschedules {
				t.Fatalf("expected reschedule count %d, got %d", tc.wantReschedules, saved.RescheduleCount)
			}
			if saved.ErrorDescription != tc.err.Error() {
				t.Fatalf("expected backend error to be recorded, got %q", saved.ErrorDescription)
			}
			if f.backend.CallCount("CreateTransfer") != 0 {
				t.Fatalf("transfer must not be created")
			}
		})
	}
}

func TestStartTransfersAlreadyTransferredStillCreates(t *testing.T) {
	f := newFixture(record(1, "MEM-1", model.TransferStatusRescheduled))
	f.backend.PreviewTransferFn = func(context.Context, string, string) (*model.TransferPreview, error) {
		return nil, &domainErrors.BackendError{Code: "5117", Message: "Membership already transferred"}
	}

	if _, err := f.service.StartTransfers(context.Background(), "PRD-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := f.transfers.LastSaved(1)
	if saved == nil || saved.Status != model.TransferStatusRunning || saved.TransferID != "TRF-1" {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if len(f.offers.Offers) != 0 {
		t.Fatalf("offers must not be stored without a preview")
	}
}

func TestStartTransfersCreateError(t *testing.T) {
	f := newFixture(record(1, "MEM-1", model.TransferStatusPending))
	f.backend.CreateTransferFn = func(context.Context, string, string, string, string) (*model.BackendTransfer, error) {
		return nil, &domainErrors.BackendError{Code: "2001", Message: "Internal error"}
	}

	if _, err := f.service.StartTransfers(context.Background(), "PRD-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := f.transfers.LastSaved(1)
	if saved == nil || saved.Status != model.TransferStatusFailed || saved.StatusDescription != msgCreateFailed || saved.ErrorCode != "2001" {
		t.Fatalf("unexpected saved record %+v", saved)
	}
}

func TestStartTransfersIsolatesRecords(t *testing.T) {
	f := newFixture(
		record(1, "MEM-1", model.TransferStatusPending),
		record(2, "MEM-2", model.TransferStatusPending),
	)
	f.backend.PreviewTransferFn = func(_ context.Context, _, membershipID string) (*model.TransferPreview, error) {
		if membershipID == "MEM-1" {
			return nil, errors.New("connection reset")
		}
		return &model.TransferPreview{}, nil
	}

	report, err := f.service.StartTransfers(context.Background(), "PRD-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.transfers.LastSaved(1) != nil {
		t.Fatalf("record with transport failure must be left untouched")
	}
	if saved := f.transfers.LastSaved(2); saved == nil || saved.Status != model.TransferStatusRunning {
		t.Fatalf("second record must still be started, got %+v", saved)
	}
	if report.Seen != 2 || report.Statuses[model.TransferStatusPending] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStartTransfersListError(t *testing.T) {
	f := newFixture()
	f.transfers.Err = errors.New("db down")

	if _, err := f.service.ProcessTransfers(context.Background()); err == nil {
		t.Fatalf("expected listing error")
	}
}

func TestCheckRunningCompletesTransfer(t *testing.T) {
	rec := record(3, "MEM-3", model.TransferStatusRunning)
	rec.TransferID = "TRF-3"
	f := newFixture(rec)
	f.backend.GetTransferFn = func(_ context.Context, _, _, transferID string) (*model.BackendTransfer, error) {
		if transferID != "TRF-3" {
			t.Fatalf("unexpected transfer id %s", transferID)
		}
		return &model.BackendTransfer{TransferID: transferID, CustomerID: "CUS-3", Status: model.BackendStatusProcessed}, nil
	}
	f.backend.GetCustomerFn = func(_ context.Context, _, customerID string) (*model.Customer, error) {
		return &model.Customer{
			CustomerID: customerID,
			CompanyProfile: model.CompanyProfile{
				CompanyName:       "Acme",
				PreferredLanguage: "en-US",
				Contacts:          []model.Contact{{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}},
			},
			Benefits: []model.Benefit{{
				Type: model.BenefitThreeYearCommit,
				Commitment: &model.Commitment{
					StartDate: "2024-01-01",
					EndDate:   "2027-01-01",
					Status:    model.CommitmentCommitted,
					MinimumQuantities: []model.MinimumQuantity{
						{OfferType: model.OfferTypeLicense, Quantity: 10},
						{OfferType: model.OfferTypeConsumables, Quantity: 1000},
					},
				},
			}},
		}, nil
	}

	if _, err := f.service.CheckRunningTransfers(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := f.transfers.LastSaved(3)
	if saved == nil || saved.Status != model.TransferStatusCompleted || saved.CustomerID != "CUS-3" {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if saved.CompletedAt == nil || !saved.CompletedAt.Equal(fixedNow) {
		t.Fatalf("expected completion time, got %v", saved.CompletedAt)
	}
	profile := saved.Customer
	if profile.CompanyName != "Acme" || profile.ContactEmail != "ada@example.com" || profile.CommitmentStatus != model.CommitmentCommitted {
		t.Fatalf("unexpected customer profile %+v", profile)
	}
	if profile.CommitmentMinLicenses != 10 || profile.CommitmentMinConsumable != 1000 {
		t.Fatalf("unexpected commitment minimums %+v", profile)
	}
}

func TestCheckRunningRetries(t *testing.T) {
	cases := []struct {
		name       string
		retryCount int
		transfer   *model.BackendTransfer
		err        error
		wantStatus model.TransferStatus
		wantRetry  int
		wantDesc   string
	}{
		{
			name:       "pending",
			transfer:   &model.BackendTransfer{Status: model.BackendStatusPending},
			wantStatus: model.TransferStatusRunning,
			wantRetry:  1,
		},
		{
			name:       "backend error",
			err:        &domainErrors.BackendError{Code: "5116", Message: "Invalid ids"},
			wantStatus: model.TransferStatusRunning,
			wantRetry:  1,
		},
		{
			name:       "exhausted",
			retryCount: 2,
			transfer:   &model.BackendTransfer{Status: model.BackendStatusPending},
			wantStatus: model.TransferStatusFailed,
			wantRetry:  3,
			wantDesc:   "Max retries (3) exceeded.",
		},
		{
			name:       "unexpected status",
			transfer:   &model.BackendTransfer{Status: "1116"},
			wantStatus: model.TransferStatusFailed,
			wantDesc:   "Unexpected status (1116) received from Adobe while retrieving transfer.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := record(4, "MEM-4", model.TransferStatusRunning)
			rec.TransferID = "TRF-4"
			rec.RetryCount = tc.retryCount
			f := newFixture(rec)
			f.backend.GetTransferFn = func(context.Context, string, string, string) (*model.BackendTransfer, error) {
				return tc.transfer, tc.err
			}

			if _, err := f.service.CheckRunning(context.Background(), "PRD-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			saved := f.transfers.LastSaved(4)
			if saved == nil || saved.Status != tc.wantStatus || saved.RetryCount != tc.wantRetry || saved.StatusDescription != tc.wantDesc {
				t.Fatalf("unexpected saved record %+v", saved)
			}
			if f.backend.CallCount("GetCustomer") != 0 {
				t.Fatalf("customer must not be fetched")
			}
		})
	}
}

func TestCheckRunningCustomerErrorRetries(t *testing.T) {
	rec := record(5, "MEM-5", model.TransferStatusRunning)
	f := newFixture(rec)
	f.backend.GetTransferFn = func(context.Context, string, string, string) (*model.BackendTransfer, error) {
		return &model.BackendTransfer{Status: model.BackendStatusProcessed, CustomerID: "CUS-5"}, nil
	}
	f.backend.GetCustomerFn = func(context.Context, string, string) (*model.Customer, error) {
		return nil, &domainErrors.BackendError{Code: "1012", Message: "Customer not ready"}
	}

	if _, err := f.service.CheckRunning(context.Background(), "PRD-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := f.transfers.LastSaved(5)
	if saved == nil || saved.Status != model.TransferStatusRunning || saved.RetryCount != 1 || saved.ErrorCode != "1012" {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if saved.CustomerID != "CUS-5" {
		t.Fatalf("expected customer id to be kept, got %q", saved.CustomerID)
	}
	if len(f.publisher.Envelopes) != 0 {
		t.Fatalf("status did not change, no event expected")
	}
}
