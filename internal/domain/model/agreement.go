package model

import "time"

// Listing binds an agreement to its price list.
type Listing struct {
	PriceList Ref `json:"priceList"`
}

// Agreement is the parent contract of an order and its subscriptions.
type Agreement struct {
	ID            string         `json:"id"`
	Product       Ref            `json:"product"`
	Listing       Listing        `json:"listing"`
	Authorization Ref            `json:"authorization"`
	Seller        Ref            `json:"seller"`
	Buyer         Ref            `json:"buyer"`
	Lines         []Line         `json:"lines,omitempty"`
	Subscriptions []Subscription `json:"subscriptions,omitempty"`
	Parameters    Parameters     `json:"parameters"`
}

// HasItem reports whether the agreement already owns a line or subscription for the item.
func (a *Agreement) HasItem(itemID string) bool {
	for _, l := range a.Lines {
		if l.Item.ID == itemID {
			return true
		}
	}
	for _, s := range a.Subscriptions {
		for _, l := range s.Lines {
			if l.Item.ID == itemID {
				return true
			}
		}
	}
	return false
}

// CustomerID returns the backend customer id stored on the agreement.
func (a *Agreement) CustomerID() string {
	return a.Parameters.FulfillmentValue(ParamCustomerID)
}

// NextSync returns the next price sync date, if any.
func (a *Agreement) NextSync() (time.Time, bool) {
	t, err := ParseDate(a.Parameters.FulfillmentValue(ParamNextSync))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Buyer is the marketplace buyer profile used to back-fill customer data.
type Buyer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address Address `json:"address"`
	Contact Contact `json:"contact"`
}
