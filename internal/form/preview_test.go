package form_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderpad/internal/form"
)

func newPreviewSession(t *testing.T, alloc form.Allocator) (*form.Session, *fakeCatalog) {
	t.Helper()
	cat := &fakeCatalog{products: testProducts()}
	s := form.NewSession(form.DocTransfer, form.Deps{
		Catalog:   cat,
		Allocator: alloc,
		Submitter: &fakeSubmitter{},
	}, form.Options{PreviewDebounce: -1})
	if err := s.UpdateHeader(form.HeaderBusinessUnit, "BU1"); err != nil {
		t.Fatalf("set business unit: %v", err)
	}
	if err := s.UpdateHeader(form.HeaderLocation, "L1"); err != nil {
		t.Fatalf("set location: %v", err)
	}
	if err := s.UpdateHeader(form.HeaderDestination, "L2"); err != nil {
		t.Fatalf("set destination: %v", err)
	}
	return s, cat
}

func waitForCall(t *testing.T, g *gateAllocator) allocCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for preview fetch")
		return allocCall{}
	}
}

func TestStalePreviewDiscarded(t *testing.T) {
	gate := newGateAllocator()
	s, _ := newPreviewSession(t, gate)
	id := firstLineID(t, s)
	ctx := context.Background()

	if err := s.UpdateField(ctx, id, form.FieldProduct, "P1"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "5"); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	firstCall := waitForCall(t, gate)

	if err := s.UpdateField(ctx, id, form.FieldQuantity, "7"); err != nil {
		t.Fatalf("second edit: %v", err)
	}
	secondCall := waitForCall(t, gate)

	if got := firstCall.req.Quantity.String(); got != "5" {
		t.Fatalf("first fetch quantity = %s, want 5", got)
	}
	if got := secondCall.req.Quantity.String(); got != "7" {
		t.Fatalf("second fetch quantity = %s, want 7", got)
	}

	// Resolve the newer request first, then let the older one land late.
	newer := &form.AllocationPreview{Available: dec("40"), GrandTotal: dec("56.00"), EnoughStock: true}
	older := &form.AllocationPreview{Available: dec("40"), GrandTotal: dec("40.00"), EnoughStock: true}
	secondCall.reply <- allocReply{preview: newer}
	firstCall.reply <- allocReply{preview: older}
	s.Flush()

	l := s.Snapshot().Lines[0]
	if l.PreviewState != form.PreviewResolved {
		t.Fatalf("preview state = %s, want resolved", l.PreviewState)
	}
	if l.Preview == nil || !l.Preview.GrandTotal.Equal(dec("56.00")) {
		t.Fatalf("preview reflects stale inputs: %+v", l.Preview)
	}
}

func TestPreviewClearedWhenInputsIncomplete(t *testing.T) {
	gate := newGateAllocator()
	s, _ := newPreviewSession(t, gate)
	id := firstLineID(t, s)
	ctx := context.Background()

	if err := s.UpdateField(ctx, id, form.FieldProduct, "P1"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "5"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	c := waitForCall(t, gate)
	c.reply <- allocReply{preview: &form.AllocationPreview{Available: dec("40"), EnoughStock: true}}
	s.Flush()

	if got := s.Snapshot().Lines[0].PreviewState; got != form.PreviewResolved {
		t.Fatalf("preview state = %s, want resolved", got)
	}

	// Zero quantity drops the trigger condition: preview clears to idle
	// without any fetch.
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "0"); err != nil {
		t.Fatalf("zero quantity: %v", err)
	}
	s.Flush()
	l := s.Snapshot().Lines[0]
	if l.PreviewState != form.PreviewIdle || l.Preview != nil {
		t.Fatalf("preview not cleared: state=%s preview=%+v", l.PreviewState, l.Preview)
	}
	select {
	case c := <-gate.calls:
		t.Fatalf("unexpected fetch for quantity 0: %+v", c.req)
	default:
	}
}

func TestPreviewFailureIsNonBlocking(t *testing.T) {
	alloc := &fakeAllocator{fn: func(form.AllocationRequest) (*form.AllocationPreview, error) {
		return nil, errors.New("allocation service down")
	}}
	s, _ := newPreviewSession(t, alloc)
	id := firstLineID(t, s)
	ctx := context.Background()

	if err := s.UpdateField(ctx, id, form.FieldProduct, "P1"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "5"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	s.Flush()

	l := s.Snapshot().Lines[0]
	if l.PreviewState != form.PreviewFailed {
		t.Fatalf("preview state = %s, want failed", l.PreviewState)
	}
	if l.Preview != nil {
		t.Fatalf("failed preview kept data: %+v", l.Preview)
	}

	// Edits keep flowing regardless of the failed preview.
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "6"); err != nil {
		t.Fatalf("edit after failure: %v", err)
	}
}

func TestHeaderScopeChangeRetriggersPreviews(t *testing.T) {
	gate := newGateAllocator()
	s, _ := newPreviewSession(t, gate)
	id := firstLineID(t, s)
	ctx := context.Background()

	if err := s.UpdateField(ctx, id, form.FieldProduct, "P1"); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.UpdateField(ctx, id, form.FieldQuantity, "5"); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	c := waitForCall(t, gate)
	c.reply <- allocReply{preview: &form.AllocationPreview{}}
	s.Flush()

	if err := s.UpdateHeader(form.HeaderLocation, "L9"); err != nil {
		t.Fatalf("change location: %v", err)
	}
	c = waitForCall(t, gate)
	if c.req.LocationID != "L9" {
		t.Fatalf("refetch location = %s, want L9", c.req.LocationID)
	}
	c.reply <- allocReply{preview: &form.AllocationPreview{Available: dec("1")}}
	s.Flush()
}
