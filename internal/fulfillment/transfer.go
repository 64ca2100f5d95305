package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polkiloo/vipm-fulfillment/internal/adapter/marketplace"
	"github.com/polkiloo/vipm-fulfillment/internal/adapter/vipm"
	domainErrors "github.com/polkiloo/vipm-fulfillment/internal/domain/errors"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/repository"
)

// TransferEngine migrates a legacy membership into the marketplace.
type TransferEngine struct {
	flow
	transfers repository.TransferRepository
}

// NewTransferEngine constructs the transfer order flow.
func NewTransferEngine(mpt marketplace.Client, backend vipm.Client, transfers repository.TransferRepository, settings Settings, logger *slog.Logger) *TransferEngine {
	return &TransferEngine{
		flow:      newFlow(mpt, backend, settings, logger),
		transfers: transfers,
	}
}

// findTransfer returns the batch migration record of the order membership, if any.
func findTransfer(ctx context.Context, transfers repository.TransferRepository, order *model.Order) (*model.Transfer, error) {
	record, err := transfers.FindByMembershipOrCustomer(ctx, productID(order), order.Authorization.ID, order.MembershipID())
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transfer record: %w", err)
	}
	return record, nil
}

// Fulfill runs one pass of the transfer flow.
func (e *TransferEngine) Fulfill(ctx context.Context, order *model.Order) (Outcome, error) {
	record, err := findTransfer(ctx, e.transfers, order)
	if err != nil {
		return Outcome{}, err
	}
	if record != nil && record.Status != model.TransferStatusFailed {
		if err := e.setProcessingTemplate(ctx, order, e.settings.Templates.BulkMigrate); err != nil {
			return Outcome{}, err
		}
		return e.fulfillMigrated(ctx, order, record)
	}

	if err := e.setProcessingTemplate(ctx, order, e.settings.Templates.Transfer); err != nil {
		return Outcome{}, err
	}

	if order.Stage() != model.StageSubmitted {
		if out, err := e.checkTransfer(ctx, order); out != nil || err != nil {
			return derefOutcome(out), err
		}
		created, err := e.vipm.CreateTransfer(ctx, order.Authorization.ID, sellerID(order), order.ID, order.MembershipID())
		if err != nil {
			return e.fail(ctx, order, err.Error())
		}
		if err := e.saveVendorOrderID(ctx, order, created.TransferID); err != nil {
			return Outcome{}, err
		}
		e.orderLogger(order).Info("transfer submitted", slog.String("transfer", created.TransferID))
	}

	transfer, out, err := e.pollTransfer(ctx, order)
	if out != nil || err != nil {
		return derefOutcome(out), err
	}

	customer, err := e.vipm.GetCustomer(ctx, order.Authorization.ID, transfer.CustomerID)
	if err != nil {
		return e.backendFailure(ctx, order, err)
	}
	if err := e.saveCustomerData(ctx, order, transfer.TransferID, customer); err != nil {
		return Outcome{}, err
	}

	if _, err := e.materialize(ctx, order, transfer, false); err != nil {
		return e.backendFailure(ctx, order, err)
	}
	return e.complete(ctx, order, e.settings.Templates.Transfer)
}

// checkTransfer previews the membership and compares its items with the order lines.
func (e *TransferEngine) checkTransfer(ctx context.Context, order *model.Order) (*Outcome, error) {
	preview, err := e.vipm.PreviewTransfer(ctx, order.Authorization.ID, order.MembershipID())
	if err != nil {
		out, ferr := e.previewError(ctx, order, err)
		return &out, ferr
	}

	ok, skus := matchLines(preview.Items, order.Lines, model.QuantityFieldPreview)
	if !ok {
		reason := fmt.Sprintf("The items owned by the given membership don't match the order (sku or quantity): %s.", strings.Join(skus, ","))
		out, err := e.fail(ctx, order, reason)
		return &out, err
	}
	return nil, nil
}

// previewError routes membership errors to querying and fails the order on anything else.
func (e *TransferEngine) previewError(ctx context.Context, order *model.Order, err error) (Outcome, error) {
	be, ok := domainErrors.AsBackend(err)
	if !ok {
		return Outcome{}, err
	}
	switch {
	case be.Code == vipm.CodeTransferInvalidMembership, be.Code == vipm.CodeTransferInvalidMembershipOrTransferIDs:
		reason := setParamError(order, model.ParamMembershipID, errMembershipID, be.Error())
		return e.query(ctx, order, reason)
	case be.Kind == domainErrors.KindNotFound:
		reason := setParamError(order, model.ParamMembershipID, errMembershipID, msgMembershipNotFound)
		return e.query(ctx, order, reason)
	default:
		return e.fail(ctx, order, be.Error())
	}
}

func (e *TransferEngine) pollTransfer(ctx context.Context, order *model.Order) (*model.BackendTransfer, *Outcome, error) {
	vendorID := order.VendorOrderID()
	transfer, err := e.vipm.GetTransfer(ctx, order.Authorization.ID, order.MembershipID(), vendorID)
	if err != nil {
		out, ferr := e.backendFailure(ctx, order, err)
		return nil, &out, ferr
	}
	switch transfer.Status {
	case model.BackendStatusProcessed:
		return transfer, nil, nil
	case model.BackendStatusPending:
		out, err := e.retry(ctx, order, vendorID)
		return nil, &out, err
	default:
		out, err := e.fail(ctx, order, unexpectedStatusReason(transfer.Status))
		return nil, &out, err
	}
}

// materialize creates one subscription per transferred recurring item and stores the next sync
// date from the first of them; cotermed subscriptions share it. With enableRenewal the backend
// auto renewal of each subscription is switched on.
func (e *TransferEngine) materialize(ctx context.Context, order *model.Order, transfer *model.BackendTransfer, enableRenewal bool) (int, error) {
	oneTime, err := e.oneTimeSKUs(ctx, order)
	if err != nil {
		return 0, err
	}

	var commitmentDate string
	created := 0
	for _, item := range transfer.LineItems {
		if _, skip := oneTime[item.PartialSKU()]; skip {
			continue
		}
		sub, err := e.addSubscription(ctx, order, transfer.CustomerID, item)
		if err != nil {
			return created, err
		}
		if sub == nil {
			continue
		}
		created++
		if commitmentDate == "" {
			commitmentDate = sub.CommitmentDate
		}
		if enableRenewal {
			on := true
			update := model.SubscriptionUpdate{AutoRenewal: &on}
			if err := e.vipm.UpdateSubscription(ctx, order.Authorization.ID, transfer.CustomerID, item.SubscriptionID, update); err != nil {
				return created, err
			}
		}
	}

	if commitmentDate != "" {
		if err := e.saveNextSync(ctx, order, commitmentDate); err != nil {
			return created, err
		}
	}
	return created, nil
}

// fulfillMigrated completes an order for a membership already migrated by the batch scheduler.
// Failed batch records are ignored by Fulfill and the membership is transferred by the order.
func (e *TransferEngine) fulfillMigrated(ctx context.Context, order *model.Order, record *model.Transfer) (Outcome, error) {
	switch record.Status {
	case model.TransferStatusPending, model.TransferStatusRescheduled, model.TransferStatusRunning:
		reason := setParamError(order, model.ParamMembershipID, errMembershipID, msgMigrationRunning)
		return e.query(ctx, order, reason)
	case model.TransferStatusSynchronized:
		return e.fail(ctx, order, msgAlreadyMigrated)
	}

	customer, err := e.vipm.GetCustomer(ctx, order.Authorization.ID, record.CustomerID)
	if err != nil {
		return e.backendFailure(ctx, order, err)
	}
	if err := e.saveCustomerData(ctx, order, record.TransferID, customer); err != nil {
		return Outcome{}, err
	}

	transfer, err := e.vipm.GetTransfer(ctx, order.Authorization.ID, record.MembershipID, record.TransferID)
	if err != nil {
		return e.backendFailure(ctx, order, err)
	}
	if transfer.CustomerID == "" {
		transfer.CustomerID = record.CustomerID
	}

	enableRenewal := record.Customer.CommitmentStatus != model.CommitmentCommitted
	if _, err := e.materialize(ctx, order, transfer, enableRenewal); err != nil {
		return e.backendFailure(ctx, order, err)
	}

	out, err := e.complete(ctx, order, e.settings.Templates.BulkMigrate)
	if err != nil {
		return out, err
	}

	now := e.now()
	record.Status = model.TransferStatusSynchronized
	record.MPTOrderID = order.ID
	record.SynchronizedAt = &now
	record.UpdatedAt = now
	if err := e.transfers.Save(ctx, record); err != nil {
		return out, fmt.Errorf("save transfer record: %w", err)
	}
	return out, nil
}

func derefOutcome(out *Outcome) Outcome {
	if out == nil {
		return Outcome{}
	}
	return *out
}
