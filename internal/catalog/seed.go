package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"orderpad/internal/form"
)

// SeedDemo loads a small demo catalog on first run. It is a no-op when the
// products table already has rows.
func (s *Store) SeedDemo(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if n > 0 {
		return nil
	}

	products := []form.ProductSnapshot{
		{
			ID: "prd-espresso", SKU: "ESP-250", Barcode: "8901001001", Name: "Espresso Beans 250g",
			Quantity: dec("120"), UnitPrice: dec("9.90"), PurchasePrice: dec("6.20"),
			BusinessUnitID: "main", LocationID: "warehouse",
		},
		{
			ID: "prd-filter", SKU: "FLT-100", Barcode: "8901001002", Name: "Paper Filters 100pk",
			Quantity: dec("300"), UnitPrice: dec("3.50"), PurchasePrice: dec("1.80"),
			BusinessUnitID: "main", LocationID: "warehouse",
		},
		{
			ID: "prd-grinder", SKU: "GRD-01", Barcode: "8901001003", Name: "Hand Grinder",
			Quantity: dec("18"), UnitPrice: dec("54.00"), PurchasePrice: dec("31.75"),
			BusinessUnitID: "main", LocationID: "warehouse",
		},
	}
	for _, p := range products {
		if err := s.SeedProduct(ctx, p); err != nil {
			return err
		}
	}

	batches := []struct {
		product, code string
		qty, cost     string
	}{
		{"prd-espresso", "B-2401", "80", "6.00"},
		{"prd-espresso", "B-2402", "40", "6.60"},
		{"prd-filter", "B-2403", "300", "1.80"},
		{"prd-grinder", "B-2404", "18", "31.75"},
	}
	for _, b := range batches {
		if err := s.SeedBatch(ctx, b.product, "warehouse", b.code, dec(b.qty), dec(b.cost)); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
