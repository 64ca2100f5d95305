package fulfillment

import (
	"context"
	"log/slog"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// Validator checks draft orders before they are placed on the marketplace.
type Validator struct {
	flow
	transfers repository.TransferRepository
}

// NewValidator constructs the draft order validator.
func NewValidator(mpt marketplace.Client, backend vipm.Client, transfers repository.TransferRepository, logger *slog.Logger) *Validator {
	return &Validator{
		flow:      newFlow(mpt, backend, Settings{}, logger),
		transfers: transfers,
	}
}

// ValidateTransfer fills the draft order lines from what the membership owns. It reports
// whether the order carries validation errors; the order is updated in place.
func (v *Validator) ValidateTransfer(ctx context.Context, order *model.Order) (bool, error) {
	order.Parameters.ResetOrderingErrors()

	record, err := findTransfer(ctx, v.transfers, order)
	if err != nil {
		return false, err
	}
	if record == nil || record.Status == model.TransferStatusFailed {
		return v.validateNotMigrated(ctx, order)
	}

	switch record.Status {
	case model.TransferStatusPending, model.TransferStatusRescheduled, model.TransferStatusRunning:
		setParamError(order, model.ParamMembershipID, errMembershipID, msgMigrationRunning)
		return true, nil
	case model.TransferStatusSynchronized:
		setParamError(order, model.ParamMembershipID, errMembershipID, msgAlreadyMigrated)
		return true, nil
	}

	subscriptions, err := v.vipm.GetSubscriptions(ctx, order.Authorization.ID, record.CustomerID)
	if err != nil {
		return v.membershipError(order, err)
	}
	transfer, err := v.vipm.GetTransfer(ctx, order.Authorization.ID, record.MembershipID, record.TransferID)
	if err != nil {
		return v.membershipError(order, err)
	}

	items := make([]model.BackendItem, 0, len(subscriptions))
	for _, sub := range subscriptions {
		item := sub.AsItem()
		if transferred := transfer.ItemBySubscriptionID(sub.SubscriptionID); transferred != nil {
			item.OfferID = transferred.OfferID
		}
		items = append(items, item)
	}
	ok, err := v.reconcileLines(ctx, order, items, model.QuantityFieldCurrent)
	return !ok, err
}

func (v *Validator) validateNotMigrated(ctx context.Context, order *model.Order) (bool, error) {
	preview, err := v.vipm.PreviewTransfer(ctx, order.Authorization.ID, order.MembershipID())
	if err != nil {
		return v.membershipError(order, err)
	}
	ok, err := v.reconcileLines(ctx, order, preview.Items, model.QuantityFieldPreview)
	return !ok, err
}

// membershipError puts a backend failure on the membership parameter.
func (v *Validator) membershipError(order *model.Order, err error) (bool, error) {
	be, ok := domainErrors.AsBackend(err)
	if !ok {
		return false, err
	}
	detail := be.Error()
	if be.Transport() {
		detail = msgUnexpectedError
		if be.Kind == domainErrors.KindNotFound {
			detail = msgMembershipNotFound
		}
	}
	setParamError(order, model.ParamMembershipID, errMembershipID, detail)
	v.orderLogger(order).Info("transfer validation failed", slog.String("error", err.Error()))
	return true, nil
}
