package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"orderpad/internal/form"
)

type batchRow struct {
	id       int64
	code     string
	quantity decimal.Decimal
	unitCost decimal.Decimal
}

// batchesFIFO returns a product's batches at a location in receipt order.
// Ties on received_at break by insertion id, so order is stable.
func (s *Store) batchesFIFO(ctx context.Context, productID, locationID string) ([]batchRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_code, quantity, unit_cost FROM batches
		WHERE product_id = ? AND location_id = ? AND CAST(quantity AS REAL) > 0
		ORDER BY received_at, id`,
		productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	defer rows.Close()

	var out []batchRow
	for rows.Next() {
		var b batchRow
		var qty, cost string
		if err := rows.Scan(&b.id, &b.code, &qty, &cost); err != nil {
			return nil, err
		}
		if b.quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("batch %d quantity: %w", b.id, err)
		}
		if b.unitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("batch %d unit_cost: %w", b.id, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PreviewAllocation walks the product's batches oldest-first and reports
// which would be consumed to satisfy the requested quantity, with per-batch
// subtotals at each batch's own cost.
func (s *Store) PreviewAllocation(ctx context.Context, req form.AllocationRequest) (*form.AllocationPreview, error) {
	batches, err := s.batchesFIFO(ctx, req.ProductID, req.LocationID)
	if err != nil {
		return nil, err
	}

	preview := &form.AllocationPreview{}
	remaining := req.Quantity
	for _, b := range batches {
		preview.Available = preview.Available.Add(b.quantity)
		if remaining.Sign() <= 0 {
			continue
		}
		take := decimal.Min(remaining, b.quantity)
		sub := take.Mul(b.unitCost)
		preview.Batches = append(preview.Batches, form.BatchAllocation{
			BatchID:   strconv.FormatInt(b.id, 10),
			BatchCode: b.code,
			Quantity:  take,
			UnitPrice: b.unitCost,
			Subtotal:  sub,
		})
		preview.GrandTotal = preview.GrandTotal.Add(sub)
		remaining = remaining.Sub(take)
	}
	preview.EnoughStock = remaining.Sign() <= 0
	return preview, nil
}
