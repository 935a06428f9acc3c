package form

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults applied when Options fields are zero.
const (
	DefaultPreviewTimeout  = 10 * time.Second
	DefaultPreviewDebounce = 200 * time.Millisecond
)

// Deps are the session's collaborators. Catalog and Allocator are required
// for product selection and previews; Notifier and Beeper default to no-ops.
type Deps struct {
	Catalog   Catalog
	Allocator Allocator
	Submitter Submitter
	Notifier  Notifier
	Beeper    Beeper
}

// Options tune session behavior.
type Options struct {
	PreviewTimeout  time.Duration
	PreviewDebounce time.Duration
}

// Session owns one document's header and line items for the lifetime of an
// editing session. All mutation goes through its methods under a single
// mutex, so scan events and ordinary field edits cannot interleave a
// read-modify-write on the same line.
type Session struct {
	ID      string
	docType DocType

	mu        sync.Mutex
	header    DocumentHeader
	headerSet map[HeaderField]bool
	lines     []*LineItem
	focus     string

	deps Deps
	opts Options

	// pending tracks in-flight preview fetches so Flush can wait for them.
	pending sync.WaitGroup
}

// View is a consistent snapshot of session state for rendering.
type View struct {
	ID     string         `json:"id"`
	Type   DocType        `json:"type"`
	Header DocumentHeader `json:"header"`
	Lines  []LineItem     `json:"lines"`
	Totals Totals         `json:"totals"`
	// Focus is the line whose quantity input should take focus, set after a
	// scan lands. Advisory only.
	Focus string `json:"focus,omitempty"`
}

// NewSession creates a session for a new, empty document with one blank
// line.
func NewSession(t DocType, deps Deps, opts Options) *Session {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Beeper == nil {
		deps.Beeper = nopBeeper{}
	}
	if opts.PreviewTimeout <= 0 {
		opts.PreviewTimeout = DefaultPreviewTimeout
	}
	if opts.PreviewDebounce == 0 {
		opts.PreviewDebounce = DefaultPreviewDebounce
	} else if opts.PreviewDebounce < 0 {
		// Negative means fetch immediately with no coalescing window.
		opts.PreviewDebounce = 0
	}
	return &Session{
		ID:        uuid.NewString(),
		docType:   t,
		headerSet: make(map[HeaderField]bool),
		lines:     []*LineItem{newLine()},
		deps:      deps,
		opts:      opts,
	}
}

func newLine() *LineItem {
	return &LineItem{
		ID:           uuid.NewString(),
		PreviewState: PreviewIdle,
		deb:          &debouncer{},
	}
}

// Type returns the session's document type.
func (s *Session) Type() DocType { return s.docType }

// line returns the line with the given ID, or nil. Caller holds s.mu.
func (s *Session) line(id string) *LineItem {
	for _, l := range s.lines {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Snapshot returns a copy of the current document state with totals folded
// from the lines as they are now.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]LineItem, len(s.lines))
	for i, l := range s.lines {
		lines[i] = *l
	}
	return View{
		ID:     s.ID,
		Type:   s.docType,
		Header: s.header,
		Lines:  lines,
		Totals: fold(s.docType, s.lines),
		Focus:  s.focus,
	}
}

// Totals folds document aggregates from current state.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fold(s.docType, s.lines)
}

// UpdateHeader sets one header field. Setting a scope field (business unit
// or location) re-triggers every line's preview, since previews are keyed
// by the header scope.
func (s *Session) UpdateHeader(field HeaderField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !headerFields[s.docType][field] {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	s.setHeaderField(field, value)
	s.headerSet[field] = value != ""
	if field == HeaderBusinessUnit || field == HeaderLocation {
		for _, l := range s.lines {
			s.schedulePreview(l)
		}
	}
	return nil
}

func (s *Session) setHeaderField(field HeaderField, value string) {
	switch field {
	case HeaderBusinessUnit:
		s.header.BusinessUnitID = value
	case HeaderLocation:
		s.header.LocationID = value
	case HeaderDestination:
		s.header.DestinationID = value
	case HeaderDate:
		s.header.Date = value
	case HeaderReason:
		s.header.Reason = value
	case HeaderNotes:
		s.header.Notes = value
	}
}

// Hydrate loads a persisted document into the session for the edit flow.
// Rows become locked (product and quantities read-only, notes editable) and
// get a one-time preview resolution pass.
func (s *Session) Hydrate(header DocumentHeader, lines []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = header
	s.headerSet = make(map[HeaderField]bool)
	for f, v := range map[HeaderField]string{
		HeaderBusinessUnit: header.BusinessUnitID,
		HeaderLocation:     header.LocationID,
		HeaderDestination:  header.DestinationID,
		HeaderDate:         header.Date,
		HeaderReason:       header.Reason,
		HeaderNotes:        header.Notes,
	} {
		if v != "" {
			s.headerSet[f] = true
		}
	}

	s.lines = s.lines[:0]
	for i := range lines {
		src := lines[i]
		l := newLine()
		if src.ID != "" {
			l.ID = src.ID
		}
		l.Product = src.Product
		l.Quantity = src.Quantity
		l.UnitPrice = src.UnitPrice
		l.PrevQuantity = src.PrevQuantity
		l.NewQuantity = src.NewQuantity
		l.PrevPrice = src.PrevPrice
		l.NewPrice = src.NewPrice
		l.Notes = src.Notes
		l.Locked = true
		recompute(s.docType, l)
		s.lines = append(s.lines, l)
		s.schedulePreview(l)
	}
	if len(s.lines) == 0 {
		s.lines = []*LineItem{newLine()}
	}
	s.focus = ""
}

// Validate runs local checks before submission: required header fields, a
// product on every non-empty line, and positive quantities. Completely
// blank lines are ignored.
func (s *Session) Validate() []FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Session) validateLocked() []FieldError {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if s.header.BusinessUnitID == "" {
		add("business_unit_id", "is required")
	}
	if s.header.LocationID == "" {
		add("location_id", "is required")
	}
	if s.docType == DocTransfer && s.header.DestinationID == "" {
		add("destination_id", "is required")
	}
	if s.docType == DocAdjustment && s.header.Reason == "" {
		add("reason", "is required")
	}

	filled := 0
	for i, l := range s.lines {
		if lineIsBlank(l) {
			continue
		}
		filled++
		if l.Product == nil {
			add(fmt.Sprintf("lines[%d].product", i), "is required")
			continue
		}
		if s.docType == DocAdjustment {
			if parseAmount(l.NewQuantity).IsNegative() {
				add(fmt.Sprintf("lines[%d].new_quantity", i), "must not be negative")
			}
			if lineQuantity(s.docType, l).IsZero() {
				add(fmt.Sprintf("lines[%d].new_quantity", i), "must differ from previous quantity")
			}
		} else if parseAmount(l.Quantity).Sign() <= 0 {
			add(fmt.Sprintf("lines[%d].quantity", i), "must be positive")
		}
	}
	if filled == 0 {
		add("lines", "document has no lines")
	}
	return errs
}

func lineIsBlank(l *LineItem) bool {
	return l.Product == nil && l.Quantity == "" && l.UnitPrice == "" &&
		l.PrevQuantity == "" && l.NewQuantity == "" &&
		l.PrevPrice == "" && l.NewPrice == "" && l.Notes == ""
}

// document snapshots the submittable part of the session: header plus all
// non-blank lines. Caller holds s.mu.
func (s *Session) documentLocked() Document {
	doc := Document{Type: s.docType, Header: s.header}
	for _, l := range s.lines {
		if lineIsBlank(l) {
			continue
		}
		doc.Lines = append(doc.Lines, *l)
	}
	return doc
}

// Submit validates and sends the document. Validation failures and server
// rejections are surfaced through the notifier and leave the in-progress
// state untouched so the user can correct and resubmit. On success the
// session resets to a fresh empty document with the same header scope.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	s.mu.Lock()
	if errs := s.validateLocked(); len(errs) > 0 {
		s.mu.Unlock()
		for _, e := range errs {
			s.deps.Notifier.Error(e.Field + " " + e.Message)
		}
		return SubmitResult{FieldErrors: errs}, nil
	}
	doc := s.documentLocked()
	s.mu.Unlock()

	res, err := s.deps.Submitter.SubmitDocument(ctx, doc)
	if err != nil {
		s.deps.Notifier.Error("submit failed: " + err.Error())
		return SubmitResult{}, err
	}
	if !res.Success {
		if len(res.FieldErrors) > 0 {
			for _, e := range res.FieldErrors {
				s.deps.Notifier.Error(e.Field + " " + e.Message)
			}
		} else if res.Message != "" {
			s.deps.Notifier.Error(res.Message)
		} else {
			s.deps.Notifier.Error("document was rejected")
		}
		return res, nil
	}

	if res.Message != "" {
		s.deps.Notifier.Success(res.Message)
	} else {
		s.deps.Notifier.Success("document submitted")
	}
	s.mu.Lock()
	s.lines = []*LineItem{newLine()}
	s.focus = ""
	s.mu.Unlock()
	return res, nil
}

// Flush waits for all in-flight preview fetches to settle. Used by tests
// and by shutdown paths; ordinary operation never blocks on previews.
func (s *Session) Flush() {
	s.pending.Wait()
}
