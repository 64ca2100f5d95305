package model

import (
	"time"
)

// Backend order and transfer statuses.
const (
	BackendStatusProcessed       = "1000"
	BackendStatusPending         = "1002"
	BackendStatusCancelled       = "1004"
	BackendStatusInactiveCust    = "1010"
	BackendStatusInvalidCustomer = "1012"
	BackendStatusInvalidOrder    = "1026"
)

// Backend order types.
const (
	BackendOrderTypePreview        = "PREVIEW"
	BackendOrderTypeNew            = "NEW"
	BackendOrderTypeReturn         = "RETURN"
	BackendOrderTypePreviewRenewal = "PREVIEW_RENEWAL"
)

// unrecoverableStatuses maps terminal non-success backend statuses to customer facing text.
var unrecoverableStatuses = map[string]string{
	BackendStatusCancelled:       "The order has been cancelled.",
	BackendStatusInactiveCust:    "The order failed because the customer account is inactive.",
	BackendStatusInvalidCustomer: "The order failed because the customer id is not valid.",
	BackendStatusInvalidOrder:    "The order has been rejected because it is not valid.",
}

// UnrecoverableStatusDescription returns the description of a documented terminal status.
func UnrecoverableStatusDescription(status string) (string, bool) {
	d, ok := unrecoverableStatuses[status]
	return d, ok
}

// QuantityField names which backend quantity a caller reconciles against.
type QuantityField string

const (
	// QuantityFieldPreview is the quantity reported by a transfer preview.
	QuantityFieldPreview QuantityField = "quantity"
	// QuantityFieldCurrent is the live quantity of an active subscription.
	QuantityFieldCurrent QuantityField = "currentQuantity"
)

// BackendItem is a line reported by the backend: a preview item, order line item or subscription.
type BackendItem struct {
	ExtLineItemNumber int    `json:"extLineItemNumber,omitempty"`
	OfferID           string `json:"offerId"`
	Quantity          int    `json:"quantity,omitempty"`
	CurrentQuantity   int    `json:"currentQuantity,omitempty"`
	SubscriptionID    string `json:"subscriptionId,omitempty"`
	Status            string `json:"status,omitempty"`
	RenewalDate       string `json:"renewalDate,omitempty"`
}

// PartialSKU returns the catalog matching key of the item.
func (i BackendItem) PartialSKU() string {
	return PartialSKU(i.OfferID)
}

// QuantityOf returns the quantity held in the named field.
func (i BackendItem) QuantityOf(field QuantityField) int {
	if field == QuantityFieldCurrent {
		return i.CurrentQuantity
	}
	return i.Quantity
}

// Expired reports whether the item can no longer be transferred.
func (i BackendItem) Expired(now time.Time) bool {
	if i.Status == BackendStatusCancelled {
		return true
	}
	if i.RenewalDate == "" {
		return false
	}
	renewal, err := ParseDate(i.RenewalDate)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return renewal.Before(today)
}

// BackendOrder is a backend order (preview, new, return or renewal preview).
type BackendOrder struct {
	OrderID             string        `json:"orderId,omitempty"`
	ReferenceOrderID    string        `json:"referenceOrderId,omitempty"`
	ExternalReferenceID string        `json:"externalReferenceId,omitempty"`
	OrderType           string        `json:"orderType"`
	Status              string        `json:"status,omitempty"`
	CreationDate        string        `json:"creationDate,omitempty"`
	LineItems           []BackendItem `json:"lineItems"`
}

// ItemBySKU finds a line item by partial SKU.
func (o *BackendOrder) ItemBySKU(sku string) *BackendItem {
	partial := PartialSKU(sku)
	for i := range o.LineItems {
		if o.LineItems[i].PartialSKU() == partial {
			return &o.LineItems[i]
		}
	}
	return nil
}

// ReturnableOrder pairs an original purchase line with the return order already placed for it.
type ReturnableOrder struct {
	Order       BackendOrder
	Item        BackendItem
	ReturnOrder *BackendOrder
}

// TransferPreview lists the items owned by a membership.
type TransferPreview struct {
	Items      []BackendItem `json:"items"`
	TotalCount int           `json:"totalCount"`
}

// BackendTransfer is a backend membership transfer.
type BackendTransfer struct {
	TransferID   string        `json:"transferId"`
	CustomerID   string        `json:"customerId,omitempty"`
	MembershipID string        `json:"membershipId,omitempty"`
	Status       string        `json:"status"`
	CreationDate string        `json:"creationDate,omitempty"`
	LineItems    []BackendItem `json:"lineItems"`
}

// ItemBySubscriptionID finds a transfer line item by backend subscription id.
func (t *BackendTransfer) ItemBySubscriptionID(id string) *BackendItem {
	for i := range t.LineItems {
		if t.LineItems[i].SubscriptionID == id {
			return &t.LineItems[i]
		}
	}
	return nil
}

// AutoRenewal is the backend renewal configuration of a subscription.
type AutoRenewal struct {
	Enabled         bool `json:"enabled"`
	RenewalQuantity int  `json:"renewalQuantity"`
}

// BackendSubscription is a backend subscription.
type BackendSubscription struct {
	SubscriptionID  string      `json:"subscriptionId"`
	OfferID         string      `json:"offerId"`
	CurrentQuantity int         `json:"currentQuantity"`
	UsedQuantity    int         `json:"usedQuantity,omitempty"`
	AutoRenewal     AutoRenewal `json:"autoRenewal"`
	CreationDate    string      `json:"creationDate"`
	RenewalDate     string      `json:"renewalDate"`
	Status          string      `json:"status"`
}

// AsItem exposes the subscription to line reconciliation.
func (s BackendSubscription) AsItem() BackendItem {
	return BackendItem{
		OfferID:         s.OfferID,
		CurrentQuantity: s.CurrentQuantity,
		SubscriptionID:  s.SubscriptionID,
		Status:          s.Status,
		RenewalDate:     s.RenewalDate,
	}
}

// SubscriptionUpdate patches renewal settings of a backend subscription.
type SubscriptionUpdate struct {
	AutoRenewal     *bool `json:"-"`
	RenewalQuantity *int  `json:"-"`
}

// Three-year commitment values.
const (
	BenefitThreeYearCommit = "THREE_YEAR_COMMIT"
	CommitmentCommitted    = "COMMITTED"
	CommitmentActive       = "ACTIVE"
	OfferTypeLicense       = "LICENSE"
	OfferTypeConsumables   = "CONSUMABLES"
)

// MinimumQuantity is a committed minimum per offer type.
type MinimumQuantity struct {
	OfferType string `json:"offerType"`
	Quantity  int    `json:"quantity"`
}

// Commitment is a three-year commitment term.
type Commitment struct {
	StartDate         string            `json:"startDate"`
	EndDate           string            `json:"endDate"`
	Status            string            `json:"status"`
	MinimumQuantities []MinimumQuantity `json:"minimumQuantities"`
}

// MinimumQuantity returns the commitment minimum for an offer type.
func (c *Commitment) MinimumQuantity(offerType string) int {
	for _, mq := range c.MinimumQuantities {
		if mq.OfferType == offerType {
			return mq.Quantity
		}
	}
	return 0
}

// Benefit is a customer benefit such as a three-year commitment.
type Benefit struct {
	Type       string      `json:"type"`
	Commitment *Commitment `json:"commitment,omitempty"`
}

// CompanyProfile is the backend customer company data.
type CompanyProfile struct {
	CompanyName       string    `json:"companyName"`
	PreferredLanguage string    `json:"preferredLanguage"`
	Address           Address   `json:"address"`
	Phone             string    `json:"phoneNumber,omitempty"`
	Contacts          []Contact `json:"contacts"`
}

// Customer is a backend customer account.
type Customer struct {
	CustomerID     string         `json:"customerId"`
	CompanyProfile CompanyProfile `json:"companyProfile"`
	CotermDate     string         `json:"cotermDate,omitempty"`
	Benefits       []Benefit      `json:"benefits,omitempty"`
}

// ThreeYearCommitment returns the three-year commitment benefit, if any.
func (c *Customer) ThreeYearCommitment() *Commitment {
	for _, b := range c.Benefits {
		if b.Type == BenefitThreeYearCommit && b.Commitment != nil {
			return b.Commitment
		}
	}
	return nil
}

// HasActiveThreeYearCommitment reports whether pricing is locked by a running commitment.
func (c *Customer) HasActiveThreeYearCommitment(now time.Time) bool {
	commitment := c.ThreeYearCommitment()
	if commitment == nil {
		return false
	}
	if commitment.Status != CommitmentCommitted && commitment.Status != CommitmentActive {
		return false
	}
	end, err := ParseDate(commitment.EndDate)
	if err != nil {
		return true
	}
	return !end.Before(now.Truncate(24 * time.Hour))
}

// CustomerData is the profile submitted when creating a backend customer account.
type CustomerData struct {
	CompanyName       string  `json:"companyName"`
	PreferredLanguage string  `json:"preferredLanguage"`
	Address           Address `json:"address"`
	Contact           Contact `json:"contact"`
}
