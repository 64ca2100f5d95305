package fulfillment

import (
	"context"
	"fmt"
	"sort"

	"github.com/polkiloo/vipm-fulfillment/internal/domain/model"
)

type skuQuantity struct {
	sku      string
	quantity int
}

func sortedBackendItems(items []model.BackendItem, field model.QuantityField) []skuQuantity {
	out := make([]skuQuantity, 0, len(items))
	for _, it := range items {
		out = append(out, skuQuantity{sku: it.PartialSKU(), quantity: it.QuantityOf(field)})
	}
	sortSKUQuantities(out)
	return out
}

func sortedOrderLines(lines []model.Line) []skuQuantity {
	out := make([]skuQuantity, 0, len(lines))
	for _, line := range lines {
		out = append(out, skuQuantity{sku: line.SKU(), quantity: line.Quantity})
	}
	sortSKUQuantities(out)
	return out
}

func sortSKUQuantities(values []skuQuantity) {
	sort.Slice(values, func(i, j int) bool {
		if values[i].sku != values[j].sku {
			return values[i].sku < values[j].sku
		}
		return values[i].quantity < values[j].quantity
	})
}

// matchLines compares backend items and order lines as SKU/quantity multisets.
// On mismatch it returns the backend SKUs in sorted order.
func matchLines(items []model.BackendItem, lines []model.Line, field model.QuantityField) (bool, []string) {
	backend := sortedBackendItems(items, field)
	ordered := sortedOrderLines(lines)

	skus := make([]string, 0, len(backend))
	for _, b := range backend {
		skus = append(skus, b.sku)
	}
	if len(backend) != len(ordered) {
		return false, skus
	}
	for i := range backend {
		if backend[i] != ordered[i] {
			return false, skus
		}
	}
	return true, skus
}

// reconcileLines rebuilds the order lines from the backend items. Expired items are ignored,
// known SKUs get their quantity overwritten, unknown ones are appended as new lines and lines
// the backend no longer reports are dropped. It returns false when a backend SKU has no catalog
// item; the membership parameter then carries the error.
func (f *flow) reconcileLines(ctx context.Context, order *model.Order, items []model.BackendItem, field model.QuantityField) (bool, error) {
	now := f.now()
	live := make([]model.BackendItem, 0, len(items))
	seen := make(map[string]struct{})
	skus := make([]string, 0, len(items))
	for _, it := range items {
		if it.Expired(now) {
			continue
		}
		live = append(live, it)
		sku := it.PartialSKU()
		if _, ok := seen[sku]; !ok {
			seen[sku] = struct{}{}
			skus = append(skus, sku)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].PartialSKU() < live[j].PartialSKU() })
	sort.Strings(skus)

	catalog := make(map[string]model.Item)
	if len(skus) > 0 {
		found, err := f.mpt.ItemsBySKUs(ctx, productID(order), skus)
		if err != nil {
			return false, fmt.Errorf("catalog items: %w", err)
		}
		for _, item := range found {
			catalog[model.PartialSKU(item.ExternalIDs.Vendor)] = item
		}
	}

	for _, it := range live {
		sku := it.PartialSKU()
		item, ok := catalog[sku]
		if !ok {
			setParamError(order, model.ParamMembershipID, errMembershipItem, sku)
			return false, nil
		}
		if line := order.LineBySKU(sku); line != nil {
			line.Quantity = it.QuantityOf(field)
			continue
		}
		order.Lines = append(order.Lines, model.Line{Item: item, Quantity: it.QuantityOf(field)})
	}

	kept := order.Lines[:0]
	for _, line := range order.Lines {
		if _, ok := seen[line.SKU()]; ok {
			kept = append(kept, line)
		}
	}
	order.Lines = kept
	return true, nil
}
