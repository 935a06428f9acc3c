package form

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// debouncer coalesces rapid calls: only the last fn scheduled within the
// delay window runs. A replaced fn that had not fired yet gets its dropped
// callback invoked instead, so callers can release bookkeeping.
type debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	dropped func()
}

func (d *debouncer) schedule(delay time.Duration, run, dropped func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil && d.timer.Stop() && d.dropped != nil {
		d.dropped()
	}
	d.dropped = dropped
	d.timer = time.AfterFunc(delay, run)
}

// schedulePreview re-evaluates a line's preview after a preview-relevant
// input changed. Caller holds s.mu.
//
// Every call bumps the line's mutation token; a fetch result is applied
// only if its token still matches, so a slow response for an older input
// state can never overwrite a newer one regardless of arrival order.
func (s *Session) schedulePreview(l *LineItem) {
	l.token++
	qty := s.previewQuantityLocked(l)
	if l.Product == nil || qty.Sign() <= 0 ||
		s.header.BusinessUnitID == "" || s.header.LocationID == "" {
		l.Preview = nil
		l.PreviewState = PreviewIdle
		return
	}

	l.PreviewState = PreviewPending
	token := l.token
	lineID := l.ID
	req := AllocationRequest{
		ProductID:      l.Product.ID,
		BusinessUnitID: s.header.BusinessUnitID,
		LocationID:     s.header.LocationID,
		Quantity:       qty,
	}

	s.pending.Add(1)
	l.deb.schedule(s.opts.PreviewDebounce, func() {
		defer s.pending.Done()
		s.resolvePreview(lineID, token, req)
	}, s.pending.Done)
}

// previewQuantityLocked returns the stock quantity the line would consume.
// Transfers and orders consume the entered quantity; adjustments consume
// only when the delta is negative; purchases add stock and never preview.
func (s *Session) previewQuantityLocked(l *LineItem) decimal.Decimal {
	switch s.docType {
	case DocTransfer, DocOrder:
		return parseAmount(l.Quantity)
	case DocAdjustment:
		d := lineQuantity(s.docType, l)
		if d.IsNegative() {
			return d.Neg()
		}
	}
	return decimal.Zero
}

// resolvePreview performs the fetch and merges the result back into the
// line, guarded by the staleness token. Failures degrade to an empty
// preview; they never block edits or submission.
func (s *Session) resolvePreview(lineID string, token uint64, req AllocationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PreviewTimeout)
	defer cancel()
	preview, err := s.deps.Allocator.PreviewAllocation(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.line(lineID)
	if l == nil || l.token != token {
		return
	}
	if err != nil || preview == nil {
		l.Preview = nil
		l.PreviewState = PreviewFailed
		return
	}
	l.Preview = preview
	l.PreviewState = PreviewResolved
}
