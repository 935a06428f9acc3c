package form

// Field names one editable line field. Using a closed set instead of
// stringly-typed dispatch lets the derived-field engine switch exhaustively.
type Field string

const (
	FieldProduct      Field = "product"
	FieldQuantity     Field = "quantity"
	FieldUnitPrice    Field = "unit_price"
	FieldPrevQuantity Field = "prev_quantity"
	FieldNewQuantity  Field = "new_quantity"
	FieldPrevPrice    Field = "prev_price"
	FieldNewPrice     Field = "new_price"
	FieldNotes        Field = "notes"
)

// HeaderField names one editable header field.
type HeaderField string

const (
	HeaderBusinessUnit HeaderField = "business_unit_id"
	HeaderLocation     HeaderField = "location_id"
	HeaderDestination  HeaderField = "destination_id"
	HeaderDate         HeaderField = "date"
	HeaderReason       HeaderField = "reason"
	HeaderNotes        HeaderField = "notes"
)

// lineFields lists which fields each document type accepts. Purchase and
// order rows carry quantity/price, adjustment rows carry previous/new pairs,
// transfer rows carry quantity only.
var lineFields = map[DocType]map[Field]bool{
	DocPurchase: {
		FieldProduct: true, FieldQuantity: true, FieldUnitPrice: true, FieldNotes: true,
	},
	DocOrder: {
		FieldProduct: true, FieldQuantity: true, FieldUnitPrice: true, FieldNotes: true,
	},
	DocAdjustment: {
		FieldProduct: true, FieldPrevQuantity: true, FieldNewQuantity: true,
		FieldPrevPrice: true, FieldNewPrice: true, FieldNotes: true,
	},
	DocTransfer: {
		FieldProduct: true, FieldQuantity: true, FieldNotes: true,
	},
}

var headerFields = map[DocType]map[HeaderField]bool{
	DocPurchase: {
		HeaderBusinessUnit: true, HeaderLocation: true, HeaderDate: true, HeaderNotes: true,
	},
	DocOrder: {
		HeaderBusinessUnit: true, HeaderLocation: true, HeaderDate: true, HeaderNotes: true,
	},
	DocAdjustment: {
		HeaderBusinessUnit: true, HeaderLocation: true, HeaderDate: true,
		HeaderReason: true, HeaderNotes: true,
	},
	DocTransfer: {
		HeaderBusinessUnit: true, HeaderLocation: true, HeaderDestination: true,
		HeaderDate: true, HeaderNotes: true,
	},
}

// previewRelevant reports whether a change to the field can alter the
// allocation preview inputs.
func previewRelevant(f Field) bool {
	switch f {
	case FieldProduct, FieldQuantity, FieldPrevQuantity, FieldNewQuantity:
		return true
	}
	return false
}

// quantityField returns the field that carries the entered quantity for the
// document type; workbook import writes scanned quantities there.
func quantityField(t DocType) Field {
	if t == DocAdjustment {
		return FieldNewQuantity
	}
	return FieldQuantity
}
