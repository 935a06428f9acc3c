package form

import (
	"context"
	"fmt"
)

// MaxBulkLines bounds a single bulk add or workbook import.
const MaxBulkLines = 100

// AddLine appends one empty line and returns its ID.
func (s *Session) AddLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := newLine()
	s.lines = append(s.lines, l)
	return l.ID
}

// AddLines appends count empty lines. Counts outside [1, MaxBulkLines] are
// rejected without touching the document.
func (s *Session) AddLines(count int) error {
	if count < 1 || count > MaxBulkLines {
		return ErrBadCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < count; i++ {
		s.lines = append(s.lines, newLine())
	}
	return nil
}

// RemoveLine deletes a line. Removing the last remaining line is rejected:
// a document always has at least one row.
func (s *Session) RemoveLine(lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) <= 1 {
		return ErrLastLine
	}
	for i, l := range s.lines {
		if l.ID == lineID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			if s.focus == lineID {
				s.focus = ""
			}
			return nil
		}
	}
	return ErrLineNotFound
}

// ClearLine resets a line to its empty template, preserving its ID and
// locked flag. Any in-flight preview for the line becomes stale.
func (s *Session) ClearLine(lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(lineID)
	if l == nil {
		return ErrLineNotFound
	}
	locked := l.Locked
	*l = LineItem{
		ID:           l.ID,
		Locked:       locked,
		PreviewState: PreviewIdle,
		token:        l.token + 1,
		deb:          l.deb,
	}
	return nil
}

// UpdateField sets one field on one line, recomputes the line's derived
// fields synchronously, and schedules a preview refresh when the field is
// preview-relevant. On locked rows only notes remain editable.
//
// For FieldProduct the value is a product ID and must come from the line's
// current candidate set, which already excludes products used by other
// rows; uniqueness is enforced by prevention, not by after-the-fact
// rejection.
func (s *Session) UpdateField(ctx context.Context, lineID string, field Field, value string) error {
	if !lineFields[s.docType][field] {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	if field == FieldProduct {
		return s.setProduct(ctx, lineID, value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(lineID)
	if l == nil {
		return ErrLineNotFound
	}
	if l.Locked && field != FieldNotes {
		return ErrLockedLine
	}
	switch field {
	case FieldQuantity:
		l.Quantity = value
	case FieldUnitPrice:
		l.UnitPrice = value
	case FieldPrevQuantity:
		l.PrevQuantity = value
	case FieldNewQuantity:
		l.NewQuantity = value
	case FieldPrevPrice:
		l.PrevPrice = value
	case FieldNewPrice:
		l.NewPrice = value
	case FieldNotes:
		l.Notes = value
	}
	recompute(s.docType, l)
	if previewRelevant(field) {
		s.schedulePreview(l)
	}
	return nil
}

// CandidateProductsFor returns the catalog entries the line may select:
// products in the header's scope minus those already used by other lines.
// Pure projection; no session state changes.
func (s *Session) CandidateProductsFor(ctx context.Context, lineID string) ([]ProductSnapshot, error) {
	s.mu.Lock()
	if s.line(lineID) == nil {
		s.mu.Unlock()
		return nil, ErrLineNotFound
	}
	scope := s.header.Scope()
	used := s.usedProductsLocked(lineID)
	s.mu.Unlock()

	all, err := s.deps.Catalog.ListProducts(ctx, scope)
	if err != nil {
		return nil, err
	}
	candidates := make([]ProductSnapshot, 0, len(all))
	for _, p := range all {
		if used[p.ID] {
			continue
		}
		candidates = append(candidates, p)
	}
	return candidates, nil
}

// usedProductsLocked maps product IDs held by lines other than exceptID.
// Caller holds s.mu.
func (s *Session) usedProductsLocked(exceptID string) map[string]bool {
	used := make(map[string]bool)
	for _, l := range s.lines {
		if l.ID == exceptID || l.Product == nil {
			continue
		}
		used[l.Product.ID] = true
	}
	return used
}

func (s *Session) setProduct(ctx context.Context, lineID, productID string) error {
	candidates, err := s.CandidateProductsFor(ctx, lineID)
	if err != nil {
		return err
	}
	var snap *ProductSnapshot
	for i := range candidates {
		if candidates[i].ID == productID {
			snap = &candidates[i]
			break
		}
	}
	if snap == nil {
		return ErrNotInCatalog
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(lineID)
	if l == nil {
		return ErrLineNotFound
	}
	if l.Locked {
		return ErrLockedLine
	}
	// The candidate fetch ran unlocked; re-check uniqueness in case another
	// mutation landed in between.
	if s.usedProductsLocked(lineID)[productID] {
		return ErrDuplicateProduct
	}
	p := *snap
	l.Product = &p
	seedFromProduct(s.docType, l, &p)
	recompute(s.docType, l)
	s.schedulePreview(l)
	return nil
}
