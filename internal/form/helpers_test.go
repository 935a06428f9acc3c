package form_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"orderpad/internal/form"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testProducts() []form.ProductSnapshot {
	return []form.ProductSnapshot{
		{
			ID: "P1", SKU: "WID-001", Barcode: "111222333", Name: "Widget",
			Quantity: dec("40"), UnitPrice: dec("12.50"), PurchasePrice: dec("8.00"),
			BusinessUnitID: "BU1", LocationID: "L1",
		},
		{
			ID: "P2", SKU: "GAD-002", Barcode: "444555666", Name: "Gadget",
			Quantity: dec("15"), UnitPrice: dec("30.00"), PurchasePrice: dec("21.25"),
			BusinessUnitID: "BU1", LocationID: "L1",
		},
		{
			ID: "P3", SKU: "SPR-003", Barcode: "777888999", Name: "Sprocket",
			Quantity: dec("7.5"), UnitPrice: dec("4.40"), PurchasePrice: dec("2.10"),
			BusinessUnitID: "BU2", LocationID: "L2",
		},
	}
}

type fakeCatalog struct {
	products []form.ProductSnapshot
	err      error
}

func (c *fakeCatalog) ListProducts(_ context.Context, scope form.Scope) ([]form.ProductSnapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []form.ProductSnapshot
	for _, p := range c.products {
		if scope.BusinessUnitID != "" && p.BusinessUnitID != scope.BusinessUnitID {
			continue
		}
		if scope.LocationID != "" && p.LocationID != scope.LocationID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalog) FindByCode(_ context.Context, code string) (*form.ProductSnapshot, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.products {
		p := c.products[i]
		if strings.EqualFold(p.SKU, code) || strings.EqualFold(p.Barcode, code) {
			return &p, nil
		}
	}
	return nil, nil
}

// fakeAllocator answers every preview request immediately via fn.
type fakeAllocator struct {
	fn func(req form.AllocationRequest) (*form.AllocationPreview, error)
}

func (a *fakeAllocator) PreviewAllocation(_ context.Context, req form.AllocationRequest) (*form.AllocationPreview, error) {
	if a.fn == nil {
		return &form.AllocationPreview{Available: dec("100"), EnoughStock: true}, nil
	}
	return a.fn(req)
}

// gateAllocator blocks each preview request until the test releases it,
// so response ordering can be controlled explicitly.
type allocCall struct {
	req   form.AllocationRequest
	reply chan allocReply
}

type allocReply struct {
	preview *form.AllocationPreview
	err     error
}

type gateAllocator struct {
	calls chan allocCall
}

func newGateAllocator() *gateAllocator {
	return &gateAllocator{calls: make(chan allocCall, 16)}
}

func (a *gateAllocator) PreviewAllocation(_ context.Context, req form.AllocationRequest) (*form.AllocationPreview, error) {
	reply := make(chan allocReply)
	a.calls <- allocCall{req: req, reply: reply}
	r := <-reply
	return r.preview, r.err
}

type memoNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *memoNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *memoNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *memoNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type countBeeper struct {
	mu sync.Mutex
	n  int
}

func (b *countBeeper) Beep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
}

func (b *countBeeper) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

type fakeSubmitter struct {
	mu   sync.Mutex
	fn   func(doc form.Document) (form.SubmitResult, error)
	last *form.Document
}

func (f *fakeSubmitter) SubmitDocument(_ context.Context, doc form.Document) (form.SubmitResult, error) {
	f.mu.Lock()
	f.last = &doc
	f.mu.Unlock()
	if f.fn == nil {
		return form.SubmitResult{Success: true, DocumentID: "DOC-1"}, nil
	}
	return f.fn(doc)
}

type sessionEnv struct {
	session   *form.Session
	catalog   *fakeCatalog
	notifier  *memoNotifier
	beeper    *countBeeper
	submitter *fakeSubmitter
}

func newTestSession(t *testing.T, docType form.DocType) *sessionEnv {
	t.Helper()
	env := &sessionEnv{
		catalog:   &fakeCatalog{products: testProducts()},
		notifier:  &memoNotifier{},
		beeper:    &countBeeper{},
		submitter: &fakeSubmitter{},
	}
	env.session = form.NewSession(docType, form.Deps{
		Catalog:   env.catalog,
		Allocator: &fakeAllocator{},
		Submitter: env.submitter,
		Notifier:  env.notifier,
		Beeper:    env.beeper,
	}, form.Options{PreviewDebounce: -1})
	return env
}

// setHeaderScope puts the session in the BU1/L1 scope used by most tests.
func setHeaderScope(t *testing.T, s *form.Session) {
	t.Helper()
	if err := s.UpdateHeader(form.HeaderBusinessUnit, "BU1"); err != nil {
		t.Fatalf("set business unit: %v", err)
	}
	if err := s.UpdateHeader(form.HeaderLocation, "L1"); err != nil {
		t.Fatalf("set location: %v", err)
	}
}

func firstLineID(t *testing.T, s *form.Session) string {
	t.Helper()
	v := s.Snapshot()
	if len(v.Lines) == 0 {
		t.Fatal("session has no lines")
	}
	return v.Lines[0].ID
}
