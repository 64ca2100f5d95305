package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const producerName = "vipm-fulfillment"

// Event types published by the service.
const (
	EventOrderFulfilled  = "OrderFulfillmentPass"
	EventTransferStatus  = "TransferStatusChanged"
	EventAgreementSynced = "AgreementPricesSynced"
)

// Envelope wraps every published payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// OrderOutcomePayload reports how a fulfillment pass left an order.
type OrderOutcomePayload struct {
	OrderID   string `json:"order_id"`
	OrderType string `json:"order_type"`
	ProductID string `json:"product_id"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
}

// TransferStatusPayload reports a batch migration record transition.
type TransferStatusPayload struct {
	TransferID   int64  `json:"transfer_id"`
	ProductID    string `json:"product_id"`
	MembershipID string `json:"membership_id"`
	Status       string `json:"status"`
	Description  string `json:"description,omitempty"`
}

// AgreementSyncedPayload reports a price synchronization of one agreement.
type AgreementSyncedPayload struct {
	AgreementID string `json:"agreement_id"`
	Lines       int    `json:"lines"`
	NextSync    string `json:"next_sync,omitempty"`
	DryRun      bool   `json:"dry_run"`
}

// Publisher delivers envelopes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Emit builds an envelope and publishes it. Failures are returned to the caller,
// which usually only logs them.
func Emit(ctx context.Context, p Publisher, eventType, correlationID string, payload any) error {
	env, err := NewEnvelope(eventType, correlationID, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env)
}
