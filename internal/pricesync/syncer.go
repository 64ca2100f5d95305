package pricesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/events"
)

// Options tune a synchronization run.
type Options struct {
	// DryRun computes the new prices without persisting them.
	DryRun bool
	// Allow3YC also syncs customers under an active three-year commitment.
	Allow3YC bool
}

// Status is the result of synchronizing one agreement.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result describes one agreement of a run.
type Result struct {
	AgreementID string `json:"agreement_id"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	NextSync    string `json:"next_sync,omitempty"`
}

// Report aggregates a run over many agreements.
type Report struct {
	Synced  int      `json:"synced"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

func (r *Report) add(res Result) {
	switch res.Status {
	case StatusSynced:
		r.Synced++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// Syncer refreshes agreement and subscription prices from the backend and the price list.
type Syncer struct {
	mpt       marketplace.Client
	backend   vipm.Client
	publisher events.Publisher
	products  []string
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncer(mpt marketplace.Client, backend vipm.Client, publisher events.Publisher, products []string, logger *slog.Logger) *Syncer {
	return &Syncer{
		mpt:       mpt,
		backend:   backend,
		publisher: publisher,
		products:  products,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncByIDs synchronizes the given agreements.
func (s *Syncer) SyncByIDs(ctx context.Context, ids []string, opts Options) (Report, error) {
	if len(ids) == 0 {
		return Report{}, errors.New("no agreement ids given")
	}
	return s.syncFiltered(ctx, marketplace.AgreementFilter{IDs: ids}, opts)
}

// SyncAll synchronizes every active agreement of the configured products.
func (s *Syncer) SyncAll(ctx context.Context, opts Options) (Report, error) {
	return s.syncFiltered(ctx, marketplace.AgreementFilter{ProductIDs: s.products, ActiveOnly: true}, opts)
}

// SyncDue synchronizes the active agreements whose next sync date has been reached.
func (s *Syncer) SyncDue(ctx context.Context, opts Options) (Report, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	return s.syncFiltered(ctx, marketplace.AgreementFilter{ProductIDs: s.products, NextSyncDue: &today, ActiveOnly: true}, opts)
}

func (s *Syncer) syncFiltered(ctx context.Context, filter marketplace.AgreementFilter, opts Options) (Report, error) {
	var report Report
	agreements, err := s.mpt.ListAgreements(ctx, filter)
	if err != nil {
		return report, fmt.Errorf("list agreements: %w", err)
	}
	s.logger.Info("agreements to sync",
		slog.Int("count", len(agreements)),
		slog.Bool("dry_run", opts.DryRun),
	)
	for i := range agreements {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(s.SyncAgreement(ctx, &agreements[i], opts))
	}
	return report, nil
}

// SyncAgreement refreshes one agreement. Errors are logged and reported in the result.
func (s *Syncer) SyncAgreement(ctx context.Context, agreement *model.Agreement, opts Options) Result {
	log := s.logger.With(slog.String("agreement", agreement.ID))
	res := Result{AgreementID: agreement.ID}

	for _, sub := range agreement.Subscriptions {
		if sub.Status.Transitional() {
			log.Info(fmt.Sprintf("Agreement %s has processing subscriptions, skip it", agreement.ID))
			res.Status = StatusSkipped
			res.Reason = "processing subscriptions"
			return res
		}
	}

	plan, err := s.plan(ctx, agreement, opts)
	if err != nil {
		log.Error(fmt.Sprintf("Cannot sync agreement %s", agreement.ID), slog.String("error", err.Error()))
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	if plan == nil {
		log.Info(fmt.Sprintf("Customer of agreement %s has commited for 3y, skip it", agreement.ID))
		res.Status = StatusSkipped
		res.Reason = "three-year commitment"
		return res
	}

	res.Status = StatusSynced
	res.NextSync = plan.nextSync
	if opts.DryRun {
		log.Info("dry run, prices not persisted",
			slog.Int("subscriptions", len(plan.subscriptions)),
			slog.Int("lines", len(plan.lines)),
		)
		return res
	}

	if err := s.apply(ctx, agreement, plan); err != nil {
		log.Error(fmt.Sprintf("Cannot sync agreement %s", agreement.ID), slog.String("error", err.Error()))
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	payload := events.AgreementSyncedPayload{
		AgreementID: agreement.ID,
		Lines:       len(plan.lines),
		NextSync:    plan.nextSync,
	}
	if err := events.Emit(ctx, s.publisher, events.EventAgreementSynced, agreement.ID, payload); err != nil {
		log.Warn("cannot publish agreement sync", slog.String("error", err.Error()))
	}
	log.Info("agreement synced", slog.String("next_sync", plan.nextSync))
	return res
}

type subscriptionUpdate struct {
	id     string
	lines  []marketplace.LinePrice
	params model.Parameters
}

type syncPlan struct {
	subscriptions []subscriptionUpdate
	lines         []marketplace.LinePrice
	nextSync      string
}

// plan computes every update of the agreement. It returns nil when the customer is skipped.
func (s *Syncer) plan(ctx context.Context, agreement *model.Agreement, opts Options) (*syncPlan, error) {
	customerID := agreement.CustomerID()
	customer, err := s.backend.GetCustomer(ctx, agreement.Authorization.ID, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", customerID, err)
	}
	if !opts.Allow3YC && customer.HasActiveThreeYearCommitment(s.now()) {
		return nil, nil
	}

	type subscriptionSKU struct {
		sub *model.Subscription
		sku string
	}
	var (
		subs []subscriptionSKU
		skus []string
	)
	for _, ref := range agreement.Subscriptions {
		if ref.Status == model.SubscriptionStatusTerminated {
			continue
		}
		sub, err := s.mpt.GetAgreementSubscription(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("get subscription %s: %w", ref.ID, err)
		}
		backendSub, err := s.backend.GetSubscription(ctx, agreement.Authorization.ID, customerID, sub.ExternalIDs.Vendor)
		if err != nil {
			return nil, fmt.Errorf("get backend subscription %s: %w", sub.ExternalIDs.Vendor, err)
		}
		subs = append(subs, subscriptionSKU{sub: sub, sku: backendSub.OfferID})
		skus = append(skus, model.PartialSKU(backendSub.OfferID))
	}
	for _, line := range agreement.Lines {
		skus = append(skus, line.SKU())
	}

	prices, err := s.prices(ctx, agreement, skus)
	if err != nil {
		return nil, err
	}

	plan := &syncPlan{}
	for _, entry := range subs {
		update := subscriptionUpdate{id: entry.sub.ID}
		update.params.SetFulfillment(model.ParamAdobeSKU, entry.sku)
		if price, ok := prices[model.PartialSKU(entry.sku)]; ok && len(entry.sub.Lines) > 0 {
			update.lines = []marketplace.LinePrice{{ID: entry.sub.Lines[0].ID, Price: model.Price{UnitPP: price}}}
		}
		plan.subscriptions = append(plan.subscriptions, update)
	}
	for _, line := range prices.Apply(agreement.Lines) {
		plan.lines = append(plan.lines, marketplace.LinePrice{ID: line.ID, Price: line.Price})
	}

	if coterm, err := model.ParseDate(customer.CotermDate); err == nil {
		plan.nextSync = model.FormatDate(coterm.AddDate(0, 0, 1))
	}
	return plan, nil
}

func (s *Syncer) prices(ctx context.Context, agreement *model.Agreement, skus []string) (model.PriceSnapshot, error) {
	if len(skus) == 0 {
		return model.PriceSnapshot{}, nil
	}
	items, err := s.mpt.ItemsBySKUs(ctx, agreement.Product.ID, skus)
	if err != nil {
		return nil, fmt.Errorf("items by skus: %w", err)
	}
	if len(items) == 0 {
		return model.PriceSnapshot{}, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	priceItems, err := s.mpt.PriceListItems(ctx, agreement.Listing.PriceList.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("price list items: %w", err)
	}
	return model.NewPriceSnapshot(priceItems), nil
}

func (s *Syncer) apply(ctx context.Context, agreement *model.Agreement, plan *syncPlan) error {
	for _, update := range plan.subscriptions {
		if err := s.mpt.UpdateAgreementSubscription(ctx, update.id, update.lines, update.params); err != nil {
			return fmt.Errorf("update subscription %s: %w", update.id, err)
		}
	}
	var params model.Parameters
	if plan.nextSync != "" {
		params.SetFulfillment(model.ParamNextSync, plan.nextSync)
	}
	if err := s.mpt.UpdateAgreement(ctx, agreement.ID, plan.lines, params); err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	return nil
}
