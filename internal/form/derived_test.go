package form_test

import (
	"context"
	"testing"

	"orderpad/internal/form"

	"github.com/shopspring/decimal"
)

func TestAdjustmentDeltaPrecision(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
		want string
	}{
		{"whole numbers", "10", "7", "-3.000"},
		{"fractional", "0", "5.5", "5.500"},
		{"blank previous reads as zero", "", "2", "2.000"},
		{"garbage reads as zero", "abc", "4", "4.000"},
		{"no drift on repeating decimals", "0.1", "0.3", "0.200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestSession(t, form.DocAdjustment)
			s := env.session
			id := firstLineID(t, s)
			ctx := context.Background()
			if err := s.UpdateField(ctx, id, form.FieldPrevQuantity, tt.prev); err != nil {
				t.Fatalf("set prev: %v", err)
			}
			if err := s.UpdateField(ctx, id, form.FieldNewQuantity, tt.next); err != nil {
				t.Fatalf("set new: %v", err)
			}
			if got := s.Snapshot().Lines[0].Derived.QtyDelta; got != tt.want {
				t.Errorf("delta = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubtotalRecomputedOnEveryEdit(t *testing.T) {
	env := newTestSession(t, form.DocOrder)
	s := env.session
	id := firstLineID(t, s)
	ctx := context.Background()

	if err := s.UpdateField(ctx, id, form.FieldQuantity, "3"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := s.UpdateField(ctx, id, form.FieldUnitPrice, "2.50"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if got := s.Snapshot().Lines[0].Derived.Subtotal; got != "7.50" {
		t.Errorf("subtotal = %q, want 7.50", got)
	}

	if err := s.UpdateField(ctx, id, form.FieldQuantity, "4"); err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if got := s.Snapshot().Lines[0].Derived.Subtotal; got != "10.00" {
		t.Errorf("subtotal after edit = %q, want 10.00", got)
	}
}

func TestProductSelectSeedsSnapshotValues(t *testing.T) {
	ctx := context.Background()

	t.Run("order seeds selling price", func(t *testing.T) {
		env := newTestSession(t, form.DocOrder)
		setHeaderScope(t, env.session)
		id := firstLineID(t, env.session)
		if err := env.session.UpdateField(ctx, id, form.FieldProduct, "P2"); err != nil {
			t.Fatalf("set product: %v", err)
		}
		if got := env.session.Snapshot().Lines[0].UnitPrice; got != "30.00" {
			t.Errorf("unit price = %q, want 30.00", got)
		}
	})

	t.Run("purchase seeds cost price", func(t *testing.T) {
		env := newTestSession(t, form.DocPurchase)
		setHeaderScope(t, env.session)
		id := firstLineID(t, env.session)
		if err := env.session.UpdateField(ctx, id, form.FieldProduct, "P2"); err != nil {
			t.Fatalf("set product: %v", err)
		}
		if got := env.session.Snapshot().Lines[0].UnitPrice; got != "21.25" {
			t.Errorf("unit price = %q, want 21.25", got)
		}
	})

	t.Run("adjustment seeds previous quantity and cost", func(t *testing.T) {
		env := newTestSession(t, form.DocAdjustment)
		setHeaderScope(t, env.session)
		id := firstLineID(t, env.session)
		if err := env.session.UpdateField(ctx, id, form.FieldProduct, "P2"); err != nil {
			t.Fatalf("set product: %v", err)
		}
		l := env.session.Snapshot().Lines[0]
		if l.PrevQuantity != "15.000" {
			t.Errorf("prev quantity = %q, want 15.000", l.PrevQuantity)
		}
		if l.PrevPrice != "21.25" {
			t.Errorf("prev price = %q, want 21.25", l.PrevPrice)
		}
	})
}

func TestAggregatesFoldFromCurrentState(t *testing.T) {
	env := newTestSession(t, form.DocOrder)
	s := env.session
	setHeaderScope(t, s)
	ctx := context.Background()

	first := firstLineID(t, s)
	if err := s.UpdateField(ctx, first, form.FieldProduct, "P1"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, first, form.FieldQuantity, "2"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	second := s.AddLine()
	if err := s.UpdateField(ctx, second, form.FieldProduct, "P2"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, second, form.FieldQuantity, "1"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	tot := s.Totals()
	if tot.TotalItems != 2 {
		t.Errorf("total items = %d, want 2", tot.TotalItems)
	}
	if tot.TotalQuantity != "3.000" {
		t.Errorf("total quantity = %q, want 3.000", tot.TotalQuantity)
	}
	// 2 x 12.50 + 1 x 30.00
	if tot.GrandTotal != "55.00" {
		t.Errorf("grand total = %q, want 55.00", tot.GrandTotal)
	}

	// Removal must be reflected immediately; totals are a fold, not a cache.
	if err := s.RemoveLine(second); err != nil {
		t.Fatalf("RemoveLine: %v", err)
	}
	tot = s.Totals()
	if tot.GrandTotal != "25.00" {
		t.Errorf("grand total after removal = %q, want 25.00", tot.GrandTotal)
	}

	// A row with quantity and price entered but no product yet still carries
	// its subtotal into the grand total; only the item count waits for the
	// product selection.
	third := s.AddLine()
	if err := s.UpdateField(ctx, third, form.FieldQuantity, "2"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := s.UpdateField(ctx, third, form.FieldUnitPrice, "3.00"); err != nil {
		t.Fatalf("set price: %v", err)
	}
	tot = s.Totals()
	if tot.GrandTotal != "31.00" {
		t.Errorf("grand total with product-less row = %q, want 31.00", tot.GrandTotal)
	}
	if tot.TotalItems != 1 {
		t.Errorf("total items = %d, want 1 (product-less rows are not items)", tot.TotalItems)
	}

	// Grand total always equals the sum of line subtotals from current state.
	v := s.Snapshot()
	sum := decimal.Zero
	for _, l := range v.Lines {
		if l.Derived.Subtotal != "" {
			sum = sum.Add(dec(l.Derived.Subtotal))
		}
	}
	if sum.StringFixed(2) != v.Totals.GrandTotal {
		t.Errorf("grand total %q diverges from line sum %q", v.Totals.GrandTotal, sum.StringFixed(2))
	}
}
