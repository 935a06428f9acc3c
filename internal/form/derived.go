package form

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed display precision: 3 decimal places for quantities, 2 for currency.
const (
	qtyPlaces   = 3
	pricePlaces = 2
)

// parseAmount reads a raw input field as a decimal. Blank or unparseable
// input degrades to zero; the raw string itself is never modified.
func parseAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// recompute rebuilds every derived field of a line from its source fields.
// It is the only place derived values are written.
func recompute(t DocType, l *LineItem) {
	l.Derived = Derived{}
	switch t {
	case DocAdjustment:
		qd := parseAmount(l.NewQuantity).Sub(parseAmount(l.PrevQuantity))
		l.Derived.QtyDelta = qd.StringFixed(qtyPlaces)
		pd := parseAmount(l.NewPrice).Sub(parseAmount(l.PrevPrice))
		l.Derived.PriceDelta = pd.StringFixed(pricePlaces)
	case DocTransfer:
		// Transfer rows have no price input; cost comes from the preview.
	default:
		sub := parseAmount(l.Quantity).Mul(parseAmount(l.UnitPrice))
		l.Derived.Subtotal = sub.StringFixed(pricePlaces)
	}
}

// seedFromProduct fills a line's numeric fields from the selected product's
// catalog snapshot. Locked rows are never seeded. Value adjustments seed
// from the purchase (cost) price; order rows use the selling price.
func seedFromProduct(t DocType, l *LineItem, p *ProductSnapshot) {
	if l.Locked {
		return
	}
	switch t {
	case DocPurchase:
		l.UnitPrice = p.PurchasePrice.StringFixed(pricePlaces)
	case DocOrder:
		l.UnitPrice = p.UnitPrice.StringFixed(pricePlaces)
	case DocAdjustment:
		l.PrevQuantity = p.Quantity.StringFixed(qtyPlaces)
		l.PrevPrice = p.PurchasePrice.StringFixed(pricePlaces)
	}
}

// lineQuantity returns the quantity a line contributes to document totals.
// For adjustments this is the signed delta, not the new quantity.
func lineQuantity(t DocType, l *LineItem) decimal.Decimal {
	if t == DocAdjustment {
		return parseAmount(l.NewQuantity).Sub(parseAmount(l.PrevQuantity))
	}
	return parseAmount(l.Quantity)
}

// lineValue returns the monetary value a line contributes to the grand
// total: quantity x price for purchase/order rows, the resolved preview
// cost for transfers, and delta x previous cost for adjustments.
func lineValue(t DocType, l *LineItem) decimal.Decimal {
	switch t {
	case DocTransfer:
		if l.Preview != nil {
			return l.Preview.GrandTotal
		}
		return decimal.Zero
	case DocAdjustment:
		return lineQuantity(t, l).Mul(parseAmount(l.PrevPrice))
	default:
		return parseAmount(l.Quantity).Mul(parseAmount(l.UnitPrice))
	}
}

// fold computes document totals from current line state. Only rows with a
// product count as items, but quantity and value sum over every row, so the
// grand total always equals the sum of the line subtotals on display, even
// while a row still awaits its product selection.
func fold(t DocType, lines []*LineItem) Totals {
	items := 0
	qty := decimal.Zero
	total := decimal.Zero
	for _, l := range lines {
		if l.Product != nil {
			items++
		}
		qty = qty.Add(lineQuantity(t, l))
		total = total.Add(lineValue(t, l))
	}
	return Totals{
		TotalItems:    items,
		TotalQuantity: qty.StringFixed(qtyPlaces),
		GrandTotal:    total.StringFixed(pricePlaces),
	}
}
