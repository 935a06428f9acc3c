package form

import (
	"context"
	"strings"
)

// ScanStatus classifies the outcome of one scan event.
type ScanStatus string

const (
	ScanApplied   ScanStatus = "applied"
	ScanDuplicate ScanStatus = "duplicate"
	ScanNotFound  ScanStatus = "not_found"
	ScanError     ScanStatus = "error"
)

// ScanResult reports what a scan did. LineID is set only when a line was
// populated or appended.
type ScanResult struct {
	Status  ScanStatus `json:"status"`
	Code    string     `json:"code"`
	LineID  string     `json:"line_id,omitempty"`
	Product string     `json:"product,omitempty"`
}

// Scan applies one decoded scanner code to the document. It never returns
// an error: unknown codes and duplicates degrade to a notification (plus
// the audible error tone for duplicates) and leave the lines unchanged.
//
// A matched product fills the sole empty line in place when there is one,
// otherwise a new pre-filled line is appended. The first scan into an
// empty header back-fills business unit and location from the product's
// own association, without overwriting header fields the user already set.
func (s *Session) Scan(ctx context.Context, code string) ScanResult {
	code = strings.TrimSpace(code)
	if code == "" {
		return ScanResult{Status: ScanNotFound, Code: code}
	}

	p, err := s.deps.Catalog.FindByCode(ctx, code)
	if err != nil {
		s.deps.Notifier.Error("scan lookup failed: " + err.Error())
		return ScanResult{Status: ScanError, Code: code}
	}
	if p == nil {
		s.deps.Notifier.Error("no product matches code " + code)
		return ScanResult{Status: ScanNotFound, Code: code}
	}

	s.mu.Lock()
	for _, l := range s.lines {
		if l.Product != nil && l.Product.ID == p.ID {
			s.mu.Unlock()
			s.deps.Beeper.Beep()
			s.deps.Notifier.Error(p.Name + " is already on this document")
			return ScanResult{Status: ScanDuplicate, Code: code, Product: p.Name}
		}
	}

	var target *LineItem
	if len(s.lines) == 1 && !s.lines[0].Locked && s.lines[0].Product == nil {
		target = s.lines[0]
	} else {
		target = newLine()
		s.lines = append(s.lines, target)
	}

	snap := *p
	target.Product = &snap
	seedFromProduct(s.docType, target, &snap)
	// One unit per scan event; the snapshot quantity is the stock level,
	// not an amount to order.
	if s.docType != DocAdjustment && target.Quantity == "" {
		target.Quantity = "1"
	}
	recompute(s.docType, target)

	s.backfillHeaderLocked(&snap)
	s.schedulePreview(target)
	s.focus = target.ID
	s.mu.Unlock()

	s.deps.Notifier.Success("added " + p.Name)
	return ScanResult{Status: ScanApplied, Code: code, LineID: target.ID, Product: p.Name}
}

// backfillHeaderLocked fills unset scope fields from a scanned product's
// business unit and location. Fields the user set explicitly are kept even
// if currently empty. Caller holds s.mu.
func (s *Session) backfillHeaderLocked(p *ProductSnapshot) {
	if s.header.BusinessUnitID == "" && !s.headerSet[HeaderBusinessUnit] && p.BusinessUnitID != "" {
		s.header.BusinessUnitID = p.BusinessUnitID
	}
	if s.header.LocationID == "" && !s.headerSet[HeaderLocation] && p.LocationID != "" {
		s.header.LocationID = p.LocationID
	}
}
