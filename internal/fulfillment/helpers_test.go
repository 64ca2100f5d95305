package fulfillment

import (
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

const (
	skuAcrobat   = "65304578CA"
	skuPhotoshop = "65322651CA"
	skuStock     = "65309876CA"
)

func testSettings() Settings {
	return Settings{
		MaxProcessingAttempts:  10,
		CancellationWindowDays: 14,
		Templates: config.Templates{
			Purchase:    "Purchase",
			Change:      "Change",
			Transfer:    "Transfer",
			BulkMigrate: "BulkMigrate",
			Querying:    "Querying",
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func item(id, sku string) model.Item {
	return model.Item{ID: id, Name: "Item " + id, ExternalIDs: model.ExternalIDs{Vendor: sku}}
}

func orderLine(id string, it model.Item, quantity, old int) model.Line {
	return model.Line{ID: id, Item: it, Quantity: quantity, OldQuantity: old}
}

// fullSKU expands a catalog SKU to the regional offer id the backend reports.
func fullSKU(sku string) string {
	return sku + "01A12"
}

func stringValue(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

func newOrder(typ model.OrderType, lines ...model.Line) *model.Order {
	return &model.Order{
		ID:            "ORD-0001",
		Type:          typ,
		Status:        model.OrderStatusProcessing,
		Product:       model.Ref{ID: "PRD-1"},
		Agreement:     model.Agreement{ID: "AGR-1", Product: model.Ref{ID: "PRD-1"}},
		Authorization: model.Ref{ID: "AUT-1"},
		Seller:        model.Ref{ID: "SEL-1"},
		Buyer:         model.Ref{ID: "BUY-1"},
		Lines:         lines,
	}
}

func transferOrder(membershipID string, lines ...model.Line) *model.Order {
	order := newOrder(model.OrderTypeTransfer, lines...)
	order.Parameters.Ordering = append(order.Parameters.Ordering, model.Parameter{
		ExternalID: model.ParamMembershipID,
		Name:       "Membership Id",
		Value:      stringValue(membershipID),
	})
	return order
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
