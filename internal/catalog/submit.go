package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderpad/internal/form"
)

var docPrefix = map[form.DocType]string{
	form.DocPurchase:   "PO",
	form.DocOrder:      "SO",
	form.DocAdjustment: "ADJ",
	form.DocTransfer:   "TRN",
}

func newDocumentID(t form.DocType) string {
	return docPrefix[t] + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func parseQty(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SubmitDocument persists a document and applies its stock movements in one
// transaction. Orders and transfers that would overdraw a product's batches
// are rejected with per-line field errors instead of a transport error, so
// the caller can surface them against the form.
func (s *Store) SubmitDocument(ctx context.Context, doc form.Document) (form.SubmitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return form.SubmitResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var fieldErrs []form.FieldError
	for i, l := range doc.Lines {
		if l.Product == nil {
			fieldErrs = append(fieldErrs, form.FieldError{
				Field: fmt.Sprintf("lines[%d].product", i), Message: "is required",
			})
			continue
		}
		if err := s.applyLine(ctx, tx, doc, i, l, &fieldErrs); err != nil {
			return form.SubmitResult{}, err
		}
	}
	if len(fieldErrs) > 0 {
		return form.SubmitResult{Success: false, FieldErrors: fieldErrs}, nil
	}

	id := newDocumentID(doc.Type)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, type, business_unit_id, location_id, destination_id, doc_date, reason, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(doc.Type), doc.Header.BusinessUnitID, doc.Header.LocationID,
		doc.Header.DestinationID, doc.Header.Date, doc.Header.Reason, doc.Header.Notes)
	if err != nil {
		return form.SubmitResult{}, fmt.Errorf("insert document: %w", err)
	}
	for _, l := range doc.Lines {
		qty, price := lineAmounts(doc.Type, l)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_lines (document_id, product_id, quantity, unit_price, notes)
			VALUES (?, ?, ?, ?, ?)`,
			id, l.Product.ID, qty.String(), price.String(), l.Notes)
		if err != nil {
			return form.SubmitResult{}, fmt.Errorf("insert line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return form.SubmitResult{}, fmt.Errorf("commit: %w", err)
	}
	return form.SubmitResult{Success: true, DocumentID: id, Message: "document " + id + " submitted"}, nil
}

// lineAmounts normalizes a line to the quantity/price pair persisted for it.
// Adjustments store the signed count delta priced at the previous cost.
func lineAmounts(t form.DocType, l form.LineItem) (decimal.Decimal, decimal.Decimal) {
	if t == form.DocAdjustment {
		return parseQty(l.NewQuantity).Sub(parseQty(l.PrevQuantity)), parseQty(l.PrevPrice)
	}
	return parseQty(l.Quantity), parseQty(l.UnitPrice)
}

func (s *Store) applyLine(ctx context.Context, tx *sql.Tx, doc form.Document, idx int, l form.LineItem, fieldErrs *[]form.FieldError) error {
	loc := doc.Header.LocationID
	switch doc.Type {
	case form.DocPurchase:
		qty := parseQty(l.Quantity)
		return s.addStock(ctx, tx, l.Product.ID, loc, qty, parseQty(l.UnitPrice))

	case form.DocOrder:
		qty := parseQty(l.Quantity)
		short, err := s.consumeStock(ctx, tx, l.Product.ID, loc, qty)
		if err != nil {
			return err
		}
		if short {
			*fieldErrs = append(*fieldErrs, form.FieldError{
				Field: fmt.Sprintf("lines[%d].quantity", idx), Message: "exceeds available stock",
			})
		}
		return nil

	case form.DocTransfer:
		qty := parseQty(l.Quantity)
		short, err := s.consumeStock(ctx, tx, l.Product.ID, loc, qty)
		if err != nil {
			return err
		}
		if short {
			*fieldErrs = append(*fieldErrs, form.FieldError{
				Field: fmt.Sprintf("lines[%d].quantity", idx), Message: "exceeds available stock",
			})
			return nil
		}
		// Stock lands at the destination as a single new batch costed at the
		// product's purchase price.
		cost := l.Product.PurchasePrice
		_, err = tx.ExecContext(ctx, `
			INSERT INTO batches (batch_code, product_id, location_id, quantity, unit_cost)
			VALUES (?, ?, ?, ?, ?)`,
			"", l.Product.ID, doc.Header.DestinationID, qty.String(), cost.String())
		if err != nil {
			return fmt.Errorf("transfer in: %w", err)
		}
		return nil

	case form.DocAdjustment:
		delta := parseQty(l.NewQuantity).Sub(parseQty(l.PrevQuantity))
		if delta.Sign() > 0 {
			return s.addStock(ctx, tx, l.Product.ID, loc, delta, parseQty(l.PrevPrice))
		}
		short, err := s.consumeStock(ctx, tx, l.Product.ID, loc, delta.Neg())
		if err != nil {
			return err
		}
		if short {
			*fieldErrs = append(*fieldErrs, form.FieldError{
				Field: fmt.Sprintf("lines[%d].new_quantity", idx), Message: "writes off more than is on hand",
			})
		}
		return nil
	}
	return fmt.Errorf("unknown document type %q", doc.Type)
}

// addStock inserts a batch and bumps the product's on-hand quantity.
func (s *Store) addStock(ctx context.Context, tx *sql.Tx, productID, locationID string, qty, unitCost decimal.Decimal) error {
	if qty.Sign() <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO batches (batch_code, product_id, location_id, quantity, unit_cost)
		VALUES ('', ?, ?, ?, ?)`,
		productID, locationID, qty.String(), unitCost.String())
	if err != nil {
		return fmt.Errorf("add stock: %w", err)
	}
	return s.bumpProductQuantity(ctx, tx, productID, qty)
}

// consumeStock draws qty from the product's batches at the location in FIFO
// order. It reports short=true, without mutating anything, when the batches
// cannot cover the quantity.
func (s *Store) consumeStock(ctx context.Context, tx *sql.Tx, productID, locationID string, qty decimal.Decimal) (short bool, err error) {
	if qty.Sign() <= 0 {
		return false, nil
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT id, quantity FROM batches
		WHERE product_id = ? AND location_id = ? AND CAST(quantity AS REAL) > 0
		ORDER BY received_at, id`,
		productID, locationID)
	if err != nil {
		return false, fmt.Errorf("load batches: %w", err)
	}
	type take struct {
		id   int64
		left decimal.Decimal
	}
	var takes []take
	remaining := qty
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return false, err
		}
		have, err := decimal.NewFromString(raw)
		if err != nil {
			rows.Close()
			return false, fmt.Errorf("batch %d quantity: %w", id, err)
		}
		if remaining.Sign() <= 0 {
			break
		}
		taken := decimal.Min(remaining, have)
		takes = append(takes, take{id: id, left: have.Sub(taken)})
		remaining = remaining.Sub(taken)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	if remaining.Sign() > 0 {
		return true, nil
	}
	for _, t := range takes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE batches SET quantity = ? WHERE id = ?`, t.left.String(), t.id); err != nil {
			return false, fmt.Errorf("draw batch %d: %w", t.id, err)
		}
	}
	return false, s.bumpProductQuantity(ctx, tx, productID, qty.Neg())
}

func (s *Store) bumpProductQuantity(ctx context.Context, tx *sql.Tx, productID string, delta decimal.Decimal) error {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM products WHERE id = ?`, productID).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return err
	}
	cur, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("product %s quantity: %w", productID, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE products SET quantity = ? WHERE id = ?`, cur.Add(delta).String(), productID)
	return err
}
