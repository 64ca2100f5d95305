package model

import (
	"github.com/shopspring/decimal"
)

// partialSKULength is the number of offer id characters shared across regions and versions.
const partialSKULength = 10

// PartialSKU truncates a backend offer id to the part used for catalog matching.
func PartialSKU(sku string) string {
	if len(sku) <= partialSKULength {
		return sku
	}
	return sku[:partialSKULength]
}

// Item is a catalog item; its vendor external id is the partial SKU.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	ExternalIDs ExternalIDs `json:"externalIds"`
	OneTime     bool        `json:"-"`
}

// Price carries the purchase unit price of a line.
type Price struct {
	UnitPP decimal.Decimal `json:"unitPP"`
}

// Line is an order or agreement line.
type Line struct {
	ID          string `json:"id,omitempty"`
	Item        Item   `json:"item"`
	Quantity    int    `json:"quantity"`
	OldQuantity int    `json:"oldQuantity"`
	Price       Price  `json:"price"`
}

// LineChange classifies a line of a change order.
type LineChange int

const (
	LineUnchanged LineChange = iota
	LineNew
	LineUpsize
	LineDownsize
)

func (c LineChange) String() string {
	switch c {
	case LineNew:
		return "new"
	case LineUpsize:
		return "upsize"
	case LineDownsize:
		return "downsize"
	default:
		return "unchanged"
	}
}

// SKU returns the partial SKU of the line item.
func (l Line) SKU() string {
	return PartialSKU(l.Item.ExternalIDs.Vendor)
}

// Change classifies the line by comparing quantity against old quantity.
func (l Line) Change() LineChange {
	switch {
	case l.OldQuantity == 0 && l.Quantity > 0:
		return LineNew
	case l.Quantity > l.OldQuantity:
		return LineUpsize
	case l.Quantity < l.OldQuantity:
		return LineDownsize
	default:
		return LineUnchanged
	}
}

// Delta returns the signed quantity difference requested by the line.
func (l Line) Delta() int {
	return l.Quantity - l.OldQuantity
}

// PriceListItem is a single price list entry.
type PriceListItem struct {
	ID     string          `json:"id"`
	Item   Item            `json:"item"`
	UnitPP decimal.Decimal `json:"unitPP"`
}

// PriceSnapshot maps partial SKU to unit price for one product price list.
type PriceSnapshot map[string]decimal.Decimal

// NewPriceSnapshot indexes price list entries by partial SKU.
func NewPriceSnapshot(items []PriceListItem) PriceSnapshot {
	snapshot := make(PriceSnapshot, len(items))
	for _, it := range items {
		snapshot[PartialSKU(it.Item.ExternalIDs.Vendor)] = it.UnitPP
	}
	return snapshot
}

// Apply sets unit prices on lines whose SKU is present in the snapshot.
func (p PriceSnapshot) Apply(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		if price, ok := p[out[i].SKU()]; ok {
			out[i].Price.UnitPP = price
		}
	}
	return out
}
