// Package catalog is the sqlite-backed product store: it resolves products
// for selection and scanning, computes FIFO allocation previews, and
// persists submitted documents with their stock movements.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"orderpad/internal/form"
)

// Store wraps the sqlite handle. One Store serves all sessions.
type Store struct {
	db *sql.DB
}

var (
	_ form.Catalog   = (*Store)(nil)
	_ form.Allocator = (*Store)(nil)
	_ form.Submitter = (*Store)(nil)
)

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return nil, err
	}
	// SQLite handles 1 writer + multiple readers under WAL. In-memory
	// databases exist per connection, so they must stay on a single one.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE,
			barcode TEXT DEFAULT '',
			name TEXT NOT NULL,
			quantity TEXT NOT NULL DEFAULT '0',
			unit_price TEXT NOT NULL DEFAULT '0',
			purchase_price TEXT NOT NULL DEFAULT '0',
			business_unit_id TEXT NOT NULL DEFAULT '',
			location_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_code TEXT NOT NULL DEFAULT '',
			product_id TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			quantity TEXT NOT NULL DEFAULT '0',
			unit_cost TEXT NOT NULL DEFAULT '0',
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_product_location
			ON batches(product_id, location_id, received_at)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK(type IN ('purchase','order','adjustment','transfer')),
			business_unit_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			destination_id TEXT DEFAULT '',
			doc_date TEXT DEFAULT '',
			reason TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS document_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity TEXT NOT NULL DEFAULT '0',
			unit_price TEXT NOT NULL DEFAULT '0',
			notes TEXT DEFAULT '',
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
			FOREIGN KEY (product_id) REFERENCES products(id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const productColumns = `id, sku, barcode, name, quantity, unit_price, purchase_price, business_unit_id, location_id`

func scanProduct(row interface{ Scan(...any) error }) (*form.ProductSnapshot, error) {
	var p form.ProductSnapshot
	var qty, price, cost string
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &qty, &price, &cost,
		&p.BusinessUnitID, &p.LocationID)
	if err != nil {
		return nil, err
	}
	if p.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, fmt.Errorf("product %s quantity: %w", p.ID, err)
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s unit_price: %w", p.ID, err)
	}
	if p.PurchasePrice, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("product %s purchase_price: %w", p.ID, err)
	}
	return &p, nil
}

// ListProducts returns products within the scope, ordered by name. Empty
// scope fields match everything.
func (s *Store) ListProducts(ctx context.Context, scope form.Scope) ([]form.ProductSnapshot, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if scope.BusinessUnitID != "" {
		query += ` AND business_unit_id = ?`
		args = append(args, scope.BusinessUnitID)
	}
	if scope.LocationID != "" {
		query += ` AND location_id = ?`
		args = append(args, scope.LocationID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []form.ProductSnapshot
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FindByCode matches a scanned code against SKU first, then barcode,
// case-insensitive. A miss returns (nil, nil).
func (s *Store) FindByCode(ctx context.Context, code string) (*form.ProductSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = ? COLLATE NOCASE`, code)
	p, err := scanProduct(row)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find by sku: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode = ? COLLATE NOCASE AND barcode != ''`, code)
	p, err = scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by barcode: %w", err)
	}
	return p, nil
}

// SeedProduct inserts or replaces one product row. Used by fixtures and the
// demo seed.
func (s *Store) SeedProduct(ctx context.Context, p form.ProductSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO products
			(id, sku, barcode, name, quantity, unit_price, purchase_price, business_unit_id, location_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Barcode, p.Name,
		p.Quantity.String(), p.UnitPrice.String(), p.PurchasePrice.String(),
		p.BusinessUnitID, p.LocationID)
	if err != nil {
		return fmt.Errorf("seed product %s: %w", p.SKU, err)
	}
	return nil
}

// SeedBatch inserts one stock batch for a product at a location.
func (s *Store) SeedBatch(ctx context.Context, productID, locationID, batchCode string, qty, unitCost decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (batch_code, product_id, location_id, quantity, unit_cost)
		VALUES (?, ?, ?, ?, ?)`,
		batchCode, productID, locationID, qty.String(), unitCost.String())
	if err != nil {
		return fmt.Errorf("seed batch %s: %w", batchCode, err)
	}
	return nil
}
