package model

import "strconv"

// OrderType identifies which fulfillment flow handles an order.
type OrderType string

const (
	OrderTypePurchase OrderType = "Purchase"
	OrderTypeChange   OrderType = "Change"
	OrderTypeTransfer OrderType = "Transfer"
)

// OrderStatus mirrors the marketplace order lifecycle.
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "Draft"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusQuerying   OrderStatus = "Querying"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusFailed     OrderStatus = "Failed"
)

// Ref is a lightweight reference to another marketplace object.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ExternalIDs holds identifiers assigned by third parties.
type ExternalIDs struct {
	Vendor string `json:"vendor,omitempty"`
}

// Template is a marketplace message template attached to an order.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Order is the marketplace order aggregate threaded through a fulfillment pass.
type Order struct {
	ID            string         `json:"id"`
	Type          OrderType      `json:"type"`
	Status        OrderStatus    `json:"status,omitempty"`
	Product       Ref            `json:"product"`
	Agreement     Agreement      `json:"agreement"`
	Authorization Ref            `json:"authorization"`
	Seller        Ref            `json:"seller"`
	Buyer         Ref            `json:"buyer"`
	Lines         []Line         `json:"lines"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
	Parameters    Parameters     `json:"parameters"`
	ExternalIDs   ExternalIDs    `json:"externalIds"`
	Template      *Template      `json:"template,omitempty"`
}

// Stage is the fulfillment progress derived from the identifiers an order has collected.
type Stage int

const (
	// StageNoCustomer means no backend customer account is known yet.
	StageNoCustomer Stage = iota
	// StageReadyToSubmit means a customer exists but no backend order was placed.
	StageReadyToSubmit
	// StageSubmitted means a backend order or transfer id is recorded and must only be polled.
	StageSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageNoCustomer:
		return "no-customer"
	case StageReadyToSubmit:
		return "ready-to-submit"
	case StageSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Stage reports where the order stands so flows never re-submit backend orders.
func (o *Order) Stage() Stage {
	switch {
	case o.VendorOrderID() != "":
		return StageSubmitted
	case o.CustomerID() != "":
		return StageReadyToSubmit
	default:
		return StageNoCustomer
	}
}

// VendorOrderID returns the backend order or transfer id recorded on the order.
func (o *Order) VendorOrderID() string {
	return o.ExternalIDs.Vendor
}

// CustomerID returns the backend customer id fulfillment parameter.
func (o *Order) CustomerID() string {
	return o.Parameters.FulfillmentValue(ParamCustomerID)
}

// MembershipID returns the legacy membership ordering parameter.
func (o *Order) MembershipID() string {
	return o.Parameters.OrderingValue(ParamMembershipID)
}

// RetryCount returns the number of polling attempts already spent on the order.
func (o *Order) RetryCount() int {
	n, err := strconv.Atoi(o.Parameters.FulfillmentValue(ParamRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// SetRetryCount stores the retry counter fulfillment parameter.
func (o *Order) SetRetryCount(n int) {
	o.Parameters.SetFulfillment(ParamRetryCount, strconv.Itoa(n))
}

// PriceListID returns the price list bound to the order agreement listing.
func (o *Order) PriceListID() string {
	return o.Agreement.Listing.PriceList.ID
}

// LineByItemID finds an order line by catalog item id.
func (o *Order) LineByItemID(itemID string) *Line {
	for i := range o.Lines {
		if o.Lines[i].Item.ID == itemID {
			return &o.Lines[i]
		}
	}
	return nil
}

// LineBySKU finds an order line by partial SKU.
func (o *Order) LineBySKU(sku string) *Line {
	partial := PartialSKU(sku)
	for i := range o.Lines {
		if o.Lines[i].SKU() == partial {
			return &o.Lines[i]
		}
	}
	return nil
}

// SubscriptionByLine finds the subscription that owns the given order line and item.
func (o *Order) SubscriptionByLine(lineID, itemID string) *Subscription {
	for i := range o.Subscriptions {
		for _, l := range o.Subscriptions[i].Lines {
			if l.ID == lineID && (itemID == "" || l.Item.ID == "" || l.Item.ID == itemID) {
				return &o.Subscriptions[i]
			}
		}
	}
	return nil
}

// SubscriptionByVendorID finds an order subscription by backend subscription id.
func (o *Order) SubscriptionByVendorID(id string) *Subscription {
	for i := range o.Subscriptions {
		if o.Subscriptions[i].ExternalIDs.Vendor == id {
			return &o.Subscriptions[i]
		}
	}
	return nil
}
