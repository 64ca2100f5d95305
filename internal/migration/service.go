package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
	"github.com/polkiloo/vipm-fulfillment/internal/fulfillment"
)

const (
	msgPreviewTransient = "Adobe transient error received during transfer preview."
	msgPreviewFailed    = "Adobe error received during transfer preview."
	msgCreateFailed     = "Adobe error received during transfer creation."
	msgUnexpectedStatus = "Unexpected status (%s) received from Adobe while retrieving transfer."
)

// Limits bounds how long a single record may be retried.
type Limits struct {
	RunningRetries int
	Reschedules    int
}

// Report summarizes one pass over the records of one or more products.
type Report struct {
	Seen     int                          `json:"seen"`
	Statuses map[model.TransferStatus]int `json:"statuses"`
}

func (r *Report) add(status model.TransferStatus) {
	if r.Statuses == nil {
		r.Statuses = make(map[model.TransferStatus]int)
	}
	r.Seen++
	r.Statuses[status]++
}

func (r *Report) merge(other Report) {
	for status, n := range other.Statuses {
		if r.Statuses == nil {
			r.Statuses = make(map[model.TransferStatus]int)
		}
		r.Statuses[status] += n
	}
	r.Seen += other.Seen
}

// Service starts scheduled membership transfers and follows them until the backend completes them.
type Service struct {
	backend     vipm.Client
	transfers   repository.TransferRepository
	offers      repository.OfferRepository
	publisher   events.Publisher
	products    []string
	running     fulfillment.RetryCounter
	reschedules fulfillment.RetryCounter
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(
	backend vipm.Client,
	transfers repository.TransferRepository,
	offers repository.OfferRepository,
	publisher events.Publisher,
	products []string,
	limits Limits,
	logger *slog.Logger,
) *Service {
	return &Service{
		backend:     backend,
		transfers:   transfers,
		offers:      offers,
		publisher:   publisher,
		products:    products,
		running:     fulfillment.RunningRetries(limits.RunningRetries),
		reschedules: fulfillment.Reschedules(limits.Reschedules),
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessTransfers starts the ready records of every configured product.
func (s *Service) ProcessTransfers(ctx context.Context) (Report, error) {
	return s.eachProduct(ctx, s.StartTransfers)
}

// CheckRunningTransfers polls the running records of every configured product.
func (s *Service) CheckRunningTransfers(ctx context.Context) (Report, error) {
	return s.eachProduct(ctx, s.CheckRunning)
}

func (s *Service) eachProduct(ctx context.Context, pass func(context.Context, string) (Report, error)) (Report, error) {
	var (
		total Report
		errs  []error
	)
	for _, productID := range s.products {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		report, err := pass(ctx, productID)
		total.merge(report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// StartTransfers previews and creates the backend transfer of every pending or rescheduled record.
// A failure on one record never stops the loop.
func (s *Service) StartTransfers(ctx context.Context, productID string) (Report, error) {
	var report Report
	records, err := s.transfers.ListReadyToStart(ctx, productID)
	if err != nil {
		return report, fmt.Errorf("list transfers to start for %s: %w", productID, err)
	}
	s.logger.Info("transfers to start",
		slog.String("product", productID),
		slog.Int("count", len(records)),
	)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec := &records[i]
		s.start(ctx, rec)
		report.add(rec.Status)
	}
	return report, nil
}

func (s *Service) start(ctx context.Context, rec *model.Transfer) {
	log := s.recordLogger(rec)
	previous := rec.Status

	preview, err := s.backend.PreviewTransfer(ctx, rec.AuthorizationID, rec.MembershipID)
	if err != nil {
		be, ok := domainErrors.AsBackend(err)
		if !ok {
			log.Error("transfer preview failed", slog.String("error", err.Error()))
			return
		}
		if be.Code != vipm.CodeTransferAlreadyTransferred {
			rec.ErrorCode = be.Code
			rec.ErrorDescription = be.Error()
			if be.Kind == domainErrors.KindRecoverable {
				rec.Status = model.TransferStatusRescheduled
				rec.StatusDescription = msgPreviewTransient
				s.reschedule(rec)
			} else {
				rec.Status = model.TransferStatusFailed
				rec.StatusDescription = msgPreviewFailed
			}
			s.save(ctx, rec, previous)
			return
		}
		log.Info("membership already transferred, creating transfer anyway")
	}

	if preview != nil {
		if err := s.populateOffers(ctx, rec, preview); err != nil {
			log.Error("cannot store offers", slog.String("error", err.Error()))
			return
		}
	}

	created, err := s.backend.CreateTransfer(ctx, rec.AuthorizationID, rec.SellerID, strconv.FormatInt(rec.ID, 10), rec.MembershipID)
	if err != nil {
		be, ok := domainErrors.AsBackend(err)
		if !ok {
			log.Error("transfer creation failed", slog.String("error", err.Error()))
			return
		}
		rec.ErrorCode = be.Code
		rec.ErrorDescription = be.Error()
		rec.StatusDescription = msgCreateFailed
		rec.Status = model.TransferStatusFailed
		s.save(ctx, rec, previous)
		return
	}

	rec.TransferID = created.TransferID
	rec.Status = model.TransferStatusRunning
	s.save(ctx, rec, previous)
	log.Info("transfer started", slog.String("transfer", created.TransferID))
}

// populateOffers stores the renewal offers of the preview that are not known yet.
func (s *Service) populateOffers(ctx context.Context, rec *model.Transfer, preview *model.TransferPreview) error {
	known, err := s.offers.KnownOfferIDs(ctx, rec.MembershipID)
	if err != nil {
		return fmt.Errorf("load known offers: %w", err)
	}
	var offers []model.Offer
	for _, item := range preview.Items {
		if _, ok := known[item.OfferID]; ok {
			continue
		}
		offers = append(offers, model.Offer{
			MembershipID: rec.MembershipID,
			OfferID:      item.OfferID,
			Quantity:     item.Quantity,
			RenewalDate:  item.RenewalDate,
		})
	}
	if len(offers) == 0 {
		return nil
	}
	return s.offers.CreateMany(ctx, offers)
}

// CheckRunning polls the backend transfer of every running record.
func (s *Service) CheckRunning(ctx context.Context, productID string) (Report, error) {
	var report Report
	records, err := s.transfers.ListRunning(ctx, productID)
	if err != nil {
		return report, fmt.Errorf("list running transfers for %s: %w", productID, err)
	}
	s.logger.Info("running transfers",
		slog.String("product", productID),
		slog.Int("count", len(records)),
	)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec := &records[i]
		s.check(ctx, rec)
		report.add(rec.Status)
	}
	return report, nil
}

func (s *Service) check(ctx context.Context, rec *model.Transfer) {
	log := s.recordLogger(rec)
	previous := rec.Status

	transfer, err := s.backend.GetTransfer(ctx, rec.AuthorizationID, rec.MembershipID, rec.TransferID)
	if err != nil {
		if !s.recordBackendError(rec, err) {
			log.Error("cannot retrieve transfer", slog.String("error", err.Error()))
			return
		}
		s.retry(rec)
		s.save(ctx, rec, previous)
		return
	}

	switch transfer.Status {
	case model.BackendStatusPending:
		s.retry(rec)
		s.save(ctx, rec, previous)
		return
	case model.BackendStatusProcessed:
	default:
		rec.StatusDescription = fmt.Sprintf(msgUnexpectedStatus, transfer.Status)
		rec.Status = model.TransferStatusFailed
		s.save(ctx, rec, previous)
		return
	}

	rec.CustomerID = transfer.CustomerID
	customer, err := s.backend.GetCustomer(ctx, rec.AuthorizationID, rec.CustomerID)
	if err != nil {
		if !s.recordBackendError(rec, err) {
			log.Error("cannot retrieve customer", slog.String("error", err.Error()))
			return
		}
		s.retry(rec)
		s.save(ctx, rec, previous)
		return
	}

	now := s.now()
	rec.Customer = model.NewCustomerProfile(customer)
	rec.Status = model.TransferStatusCompleted
	rec.CompletedAt = &now
	s.save(ctx, rec, previous)
	log.Info("transfer completed", slog.String("customer", rec.CustomerID))
}

// recordBackendError copies a backend error onto the record and reports whether err was one.
func (s *Service) recordBackendError(rec *model.Transfer, err error) bool {
	be, ok := domainErrors.AsBackend(err)
	if !ok {
		return false
	}
	rec.ErrorCode = be.Code
	rec.ErrorDescription = be.Error()
	return true
}

func (s *Service) retry(rec *model.Transfer) {
	next, exhausted := s.running.Advance(rec.RetryCount)
	rec.RetryCount = next
	if exhausted {
		rec.Status = model.TransferStatusFailed
		rec.StatusDescription = s.running.Reason()
	}
}

func (s *Service) reschedule(rec *model.Transfer) {
	next, exhausted := s.reschedules.Advance(rec.RescheduleCount)
	rec.RescheduleCount = next
	if exhausted {
		rec.Status = model.TransferStatusFailed
		rec.StatusDescription = s.reschedules.Reason()
	}
}

func (s *Service) save(ctx context.Context, rec *model.Transfer, previous model.TransferStatus) {
	rec.UpdatedAt = s.now()
	if err := s.transfers.Save(ctx, rec); err != nil {
		s.recordLogger(rec).Error("cannot save transfer", slog.String("error", err.Error()))
		return
	}
	if rec.Status == previous {
		return
	}
	payload := events.TransferStatusPayload{
		TransferID:   rec.ID,
		ProductID:    rec.ProductID,
		MembershipID: rec.MembershipID,
		Status:       string(rec.Status),
		Description:  rec.StatusDescription,
	}
	if err := events.Emit(ctx, s.publisher, events.EventTransferStatus, rec.MembershipID, payload); err != nil {
		s.recordLogger(rec).Warn("cannot publish transfer status", slog.String("error", err.Error()))
	}
}

func (s *Service) recordLogger(rec *model.Transfer) *slog.Logger {
	return s.logger.With(
		slog.Int64("transfer", rec.ID),
		slog.String("membership", rec.MembershipID),
		slog.String("product", rec.ProductID),
	)
}
