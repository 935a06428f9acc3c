// Package form implements the multi-line transactional form engine behind
// purchase, order, adjustment and transfer entry: a session that owns one
// document's header and line items, recomputes derived fields on every
// mutation, resolves allocation previews asynchronously, and applies
// barcode scans through the same mutation path as ordinary edits.
package form

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// DocType identifies the kind of document a session edits.
type DocType string

const (
	DocPurchase   DocType = "purchase"
	DocOrder      DocType = "order"
	DocAdjustment DocType = "adjustment"
	DocTransfer   DocType = "transfer"
)

// ValidDocTypes lists the accepted document types.
var ValidDocTypes = []DocType{DocPurchase, DocOrder, DocAdjustment, DocTransfer}

// Scope narrows catalog lookups to a document's business unit and location.
// Empty fields are treated as unrestricted.
type Scope struct {
	BusinessUnitID string `json:"business_unit_id"`
	LocationID     string `json:"location_id"`
}

// ProductSnapshot is one catalog entry as of the moment it was fetched.
// Quantity and prices are the server-side values used to seed new lines.
type ProductSnapshot struct {
	ID             string          `json:"id"`
	SKU            string          `json:"sku"`
	Barcode        string          `json:"barcode"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	BusinessUnitID string          `json:"business_unit_id"`
	LocationID     string          `json:"location_id"`
}

// AllocationRequest keys a preview fetch.
type AllocationRequest struct {
	ProductID      string          `json:"product_id"`
	BusinessUnitID string          `json:"business_unit_id"`
	LocationID     string          `json:"location_id"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// BatchAllocation is one batch consumed by an allocation preview.
type BatchAllocation struct {
	BatchID   string          `json:"batch_id"`
	BatchCode string          `json:"batch_code"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AllocationPreview is the FIFO consumption breakdown for one line. It is
// advisory only and never gates edits or submission.
type AllocationPreview struct {
	Available   decimal.Decimal   `json:"available"`
	Batches     []BatchAllocation `json:"batches"`
	GrandTotal  decimal.Decimal   `json:"grand_total"`
	EnoughStock bool              `json:"enough_stock"`
}

// PreviewState tracks the per-line preview lifecycle.
type PreviewState string

const (
	PreviewIdle     PreviewState = "idle"
	PreviewPending  PreviewState = "pending"
	PreviewResolved PreviewState = "resolved"
	PreviewFailed   PreviewState = "failed"
)

// Derived holds the fields recomputed from a line's source fields. They are
// formatted strings (3 decimal places for quantities, 2 for currency) so the
// UI never sees floating-point artifacts, and are never settable directly.
type Derived struct {
	QtyDelta   string `json:"qty_delta,omitempty"`
	PriceDelta string `json:"price_delta,omitempty"`
	Subtotal   string `json:"subtotal,omitempty"`
}

// LineItem is one row of a document. Numeric fields keep the raw input
// string for editing; arithmetic parses them leniently (blank or garbage
// reads as zero).
type LineItem struct {
	ID           string             `json:"id"`
	Product      *ProductSnapshot   `json:"product,omitempty"`
	Quantity     string             `json:"quantity,omitempty"`
	UnitPrice    string             `json:"unit_price,omitempty"`
	PrevQuantity string             `json:"prev_quantity,omitempty"`
	NewQuantity  string             `json:"new_quantity,omitempty"`
	PrevPrice    string             `json:"prev_price,omitempty"`
	NewPrice     string             `json:"new_price,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Locked       bool               `json:"locked"`
	Derived      Derived            `json:"derived"`
	Preview      *AllocationPreview `json:"preview,omitempty"`
	PreviewState PreviewState       `json:"preview_state"`

	// token counts mutations of preview-relevant inputs; a preview result
	// carrying an older token is stale and discarded.
	token uint64
	deb   *debouncer
}

// DocumentHeader is the shared context for all lines of a document.
type DocumentHeader struct {
	BusinessUnitID string `json:"business_unit_id"`
	LocationID     string `json:"location_id"`
	DestinationID  string `json:"destination_id,omitempty"`
	Date           string `json:"date,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Scope returns the catalog scope implied by the header.
func (h DocumentHeader) Scope() Scope {
	return Scope{BusinessUnitID: h.BusinessUnitID, LocationID: h.LocationID}
}

// Totals are document-level aggregates, folded over all lines from current
// state on every read. They are never maintained incrementally.
type Totals struct {
	TotalItems    int    `json:"total_items"`
	TotalQuantity string `json:"total_quantity"`
	GrandTotal    string `json:"grand_total"`
}

// Document pairs a header with its lines for submission.
type Document struct {
	Type   DocType        `json:"type"`
	Header DocumentHeader `json:"header"`
	Lines  []LineItem     `json:"lines"`
}

// FieldError is one field-level message from validation or the server.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SubmitResult is the outcome of a document submission.
type SubmitResult struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
	DocumentID  string       `json:"document_id,omitempty"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
}

// Catalog resolves products for selection and scanning.
type Catalog interface {
	ListProducts(ctx context.Context, scope Scope) ([]ProductSnapshot, error)
	// FindByCode matches a scanned code against SKU or barcode,
	// case-insensitive; nil result means no match.
	FindByCode(ctx context.Context, code string) (*ProductSnapshot, error)
}

// Allocator computes allocation previews.
type Allocator interface {
	PreviewAllocation(ctx context.Context, req AllocationRequest) (*AllocationPreview, error)
}

// Submitter persists a finished document. The wire format beyond the
// header/lines pair is opaque to the engine.
type Submitter interface {
	SubmitDocument(ctx context.Context, doc Document) (SubmitResult, error)
}

// Notifier receives user-facing success/error messages. Fire and forget;
// implementations must not call back into the session.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Beeper emits the audible error tone for rejected scans.
type Beeper interface {
	Beep()
}

// Sentinel errors returned by session operations. In every case the
// document state is left unchanged.
var (
	ErrLineNotFound     = errors.New("line not found")
	ErrLastLine         = errors.New("document must keep at least one line")
	ErrLockedLine       = errors.New("line is locked")
	ErrUnknownField     = errors.New("field not valid for this document type")
	ErrDuplicateProduct = errors.New("product already used on another line")
	ErrNotInCatalog     = errors.New("product not available for this document")
	ErrBadCount         = errors.New("count must be between 1 and 100")
)

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

type nopBeeper struct{}

func (nopBeeper) Beep() {}
