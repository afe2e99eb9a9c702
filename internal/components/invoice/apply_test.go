package invoice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
)

type applyFixture struct {
	invoices *invoice.MemoryRepository
	suggs    *suggestions.MemoryRepository
	applier  *invoice.Applier
}

func newApplyFixture(t *testing.T, moderation bool) *applyFixture {
	t.Helper()
	invoices := invoice.NewMemoryRepository()
	suggs := suggestions.NewMemoryRepository()
	return &applyFixture{
		invoices: invoices,
		suggs:    suggs,
		applier:  invoice.NewApplier(invoices, suggs, zeroRates(t), moderation, nil),
	}
}

func (f *applyFixture) mustCreateInvoice(t *testing.T, inv *invoice.Invoice) {
	t.Helper()
	if err := f.invoices.Create(context.Background(), inv); err != nil {
		t.Fatalf("invoice Create failed: %v", err)
	}
}

func (f *applyFixture) mustCreateSuggestion(t *testing.T, id, invoiceID, kind, payload, status string) {
	t.Helper()
	s := &suggestions.Suggestion{
		ID:        id,
		InvoiceID: invoiceID,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Status:    status,
	}
	if err := f.suggs.Create(context.Background(), s); err != nil {
		t.Fatalf("suggestion Create failed: %v", err)
	}
}

func TestApplier_AddItem(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindAddItem,
		`{"description":"extra hours","quantity":"3","unit_price":"100"}`, suggestions.StatusPending)

	result, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if result.Invoice.Version != 2 {
		t.Errorf("expected version 2, got %d", result.Invoice.Version)
	}
	if len(result.Invoice.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Invoice.Items))
	}
	if !result.Invoice.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected total 500, got %s", result.Invoice.TotalAmount)
	}
	if len(result.Applied) != 1 || result.Applied[0] != "sug-1" {
		t.Errorf("expected sug-1 applied, got %v", result.Applied)
	}

	// The suggestion records which version first contains it.
	s, _ := f.suggs.Get(ctx, "sug-1")
	if s.Status != suggestions.StatusApplied {
		t.Errorf("expected status applied, got %q", s.Status)
	}
	if s.AppliedInVersion != 2 {
		t.Errorf("expected applied_in_version 2, got %d", s.AppliedInVersion)
	}
}

func TestApplier_UpdateItem(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindUpdateItem,
		`{"item_id":"item-1","quantity":"5"}`, suggestions.StatusPending)

	result, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	item := result.Invoice.FindItem("item-1")
	if item == nil {
		t.Fatal("item-1 should survive the update")
	}
	if !item.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected quantity 5, got %s", item.Quantity)
	}
	// Amount recomputed from the new quantity at the old unit price.
	if !item.Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected amount 500, got %s", item.Amount)
	}
	// The line item ID never changes across edits.
	if result.Invoice.Items[0].ID != "item-1" {
		t.Errorf("line item ID must be stable, got %q", result.Invoice.Items[0].ID)
	}
}

func TestApplier_Idempotent(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindAddItem,
		`{"description":"x","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)

	first, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}

	// Re-submitting the same set is legal and changes nothing.
	second, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if second.Invoice.Version != first.Invoice.Version {
		t.Errorf("idempotent re-apply must not bump the version: %d != %d",
			second.Invoice.Version, first.Invoice.Version)
	}
	if len(second.Applied) != 0 {
		t.Errorf("nothing should be newly applied, got %v", second.Applied)
	}
	if len(second.Skipped) != 1 || second.Skipped[0] != "sug-1" {
		t.Errorf("expected sug-1 skipped, got %v", second.Skipped)
	}
	if len(second.Invoice.Items) != len(first.Invoice.Items) {
		t.Errorf("re-apply must not duplicate items")
	}
}

func TestApplier_BatchIsOneVersion(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindAddItem,
		`{"description":"a","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)
	f.mustCreateSuggestion(t, "sug-2", "inv-1", suggestions.KindAddItem,
		`{"description":"b","quantity":"1","unit_price":"20"}`, suggestions.StatusPending)

	result, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1", "sug-2"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Invoice.Version != 2 {
		t.Errorf("a batch lands in exactly one new version, got %d", result.Invoice.Version)
	}
	if len(result.Invoice.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(result.Invoice.Items))
	}
}

func TestApplier_CallerOrderPreserved(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-early", "inv-1", suggestions.KindAddItem,
		`{"description":"early","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)
	f.mustCreateSuggestion(t, "sug-late", "inv-1", suggestions.KindAddItem,
		`{"description":"late","quantity":"1","unit_price":"20"}`, suggestions.StatusPending)

	// Items land in the order the caller listed the suggestions, not in
	// creation order. Repeated IDs collapse onto the first occurrence.
	result, err := f.applier.Apply(ctx, "inv-1", []string{"sug-late", "sug-early", "sug-late"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(result.Invoice.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(result.Invoice.Items))
	}
	if got := result.Invoice.Items[1].Description; got != "late" {
		t.Errorf(`caller listed sug-late first; expected first new item "late", got %q`, got)
	}
	if got := result.Invoice.Items[2].Description; got != "early" {
		t.Errorf(`expected second new item "early", got %q`, got)
	}
}

// countingRepo counts version writes so tests can assert the idempotent
// re-apply path never reaches the store.
type countingRepo struct {
	invoice.Repository
	casCalls int
}

func (r *countingRepo) UpdateCAS(ctx context.Context, inv *invoice.Invoice, expectedVersion int) error {
	r.casCalls++
	return r.Repository.UpdateCAS(ctx, inv, expectedVersion)
}

func TestApplier_IdempotentReapplySkipsVersionWrite(t *testing.T) {
	invoices := invoice.NewMemoryRepository()
	repo := &countingRepo{Repository: invoices}
	suggs := suggestions.NewMemoryRepository()
	applier := invoice.NewApplier(repo, suggs, zeroRates(t), false, nil)
	ctx := context.Background()

	if err := invoices.Create(ctx, draftInvoice("inv-1")); err != nil {
		t.Fatalf("invoice Create failed: %v", err)
	}
	s := &suggestions.Suggestion{
		ID:        "sug-1",
		InvoiceID: "inv-1",
		Kind:      suggestions.KindAddItem,
		Payload:   json.RawMessage(`{"description":"x","quantity":"1","unit_price":"10"}`),
		Status:    suggestions.StatusPending,
	}
	if err := suggs.Create(ctx, s); err != nil {
		t.Fatalf("suggestion Create failed: %v", err)
	}

	if _, err := applier.Apply(ctx, "inv-1", []string{"sug-1"}); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	if repo.casCalls != 1 {
		t.Fatalf("expected 1 version write, got %d", repo.casCalls)
	}

	// The repeat call resolves entirely from suggestion status: no new
	// version is attempted, no items are rescanned into the store.
	if _, err := applier.Apply(ctx, "inv-1", []string{"sug-1"}); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if repo.casCalls != 1 {
		t.Errorf("re-apply must not write a version, got %d writes", repo.casCalls)
	}
}

func TestApplier_AllOrNothing(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-good", "inv-1", suggestions.KindAddItem,
		`{"description":"ok","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)
	f.mustCreateSuggestion(t, "sug-bad", "inv-1", suggestions.KindUpdateItem,
		`{"item_id":"no-such-item","quantity":"2"}`, suggestions.StatusPending)

	_, err := f.applier.Apply(ctx, "inv-1", []string{"sug-good", "sug-bad"})
	if !errors.Is(err, invoice.ErrItemGone) {
		t.Fatalf("expected ErrItemGone, got %v", err)
	}

	// The good suggestion must not have landed either.
	inv, _ := f.invoices.Get(ctx, "inv-1")
	if inv.Version != 1 {
		t.Errorf("failed batch must leave the invoice untouched, version %d", inv.Version)
	}
	if len(inv.Items) != 1 {
		t.Errorf("failed batch must not add items, got %d", len(inv.Items))
	}
	s, _ := f.suggs.Get(ctx, "sug-good")
	if s.Status != suggestions.StatusPending {
		t.Errorf("suggestion must stay pending after failed batch, got %q", s.Status)
	}
}

func TestApplier_RejectedSuggestion(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindAddItem,
		`{"description":"x","quantity":"1","unit_price":"10"}`, suggestions.StatusRejected)

	_, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if !errors.Is(err, invoice.ErrNotApplicable) {
		t.Errorf("expected ErrNotApplicable for rejected suggestion, got %v", err)
	}
}

func TestApplier_Moderation(t *testing.T) {
	f := newApplyFixture(t, true)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateSuggestion(t, "sug-pending", "inv-1", suggestions.KindAddItem,
		`{"description":"x","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)
	f.mustCreateSuggestion(t, "sug-approved", "inv-1", suggestions.KindAddItem,
		`{"description":"y","quantity":"1","unit_price":"20"}`, suggestions.StatusApproved)

	// Pending suggestions are blocked while moderation is on.
	_, err := f.applier.Apply(ctx, "inv-1", []string{"sug-pending"})
	if !errors.Is(err, invoice.ErrNotApplicable) {
		t.Errorf("expected ErrNotApplicable for unmoderated suggestion, got %v", err)
	}

	// Approved ones go through.
	result, err := f.applier.Apply(ctx, "inv-1", []string{"sug-approved"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if result.Invoice.Version != 2 {
		t.Errorf("expected version 2, got %d", result.Invoice.Version)
	}
}

func TestApplier_NotDraft(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	inv := draftInvoice("inv-1")
	inv.Status = invoice.StatusIssued
	f.mustCreateInvoice(t, inv)
	f.mustCreateSuggestion(t, "sug-1", "inv-1", suggestions.KindAddItem,
		`{"description":"x","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)

	_, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if !errors.Is(err, invoice.ErrNotDraft) {
		t.Errorf("expected ErrNotDraft, got %v", err)
	}
}

func TestApplier_WrongInvoice(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	f.mustCreateInvoice(t, draftInvoice("inv-2"))
	f.mustCreateSuggestion(t, "sug-1", "inv-2", suggestions.KindAddItem,
		`{"description":"x","quantity":"1","unit_price":"10"}`, suggestions.StatusPending)

	_, err := f.applier.Apply(ctx, "inv-1", []string{"sug-1"})
	if !errors.Is(err, invoice.ErrNotApplicable) {
		t.Errorf("expected ErrNotApplicable for cross-invoice suggestion, got %v", err)
	}
}

func TestApplier_UnknownSuggestion(t *testing.T) {
	f := newApplyFixture(t, false)

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	_, err := f.applier.Apply(context.Background(), "inv-1", []string{"missing"})
	if !errors.Is(err, suggestions.ErrNotFound) {
		t.Errorf("expected suggestions.ErrNotFound, got %v", err)
	}
}

func TestApplier_EmptySet(t *testing.T) {
	f := newApplyFixture(t, false)

	f.mustCreateInvoice(t, draftInvoice("inv-1"))
	_, err := f.applier.Apply(context.Background(), "inv-1", nil)
	if !errors.Is(err, invoice.ErrNotApplicable) {
		t.Errorf("expected ErrNotApplicable for empty set, got %v", err)
	}
}

func TestApplier_ConcurrentApplies(t *testing.T) {
	f := newApplyFixture(t, false)
	ctx := context.Background()

	f.mustCreateInvoice(t, draftInvoice("inv-1"))

	const n = 8
	for i := 0; i < n; i++ {
		f.mustCreateSuggestion(t, fmt.Sprintf("sug-%d", i), "inv-1", suggestions.KindAddItem,
			fmt.Sprintf(`{"description":"item %d","quantity":"1","unit_price":"10"}`, i),
			suggestions.StatusPending)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.applier.Apply(ctx, "inv-1", []string{fmt.Sprintf("sug-%d", i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("apply %d failed: %v", i, err)
		}
	}

	inv, _ := f.invoices.Get(ctx, "inv-1")
	// Each apply lands exactly one version bump.
	if inv.Version != 1+n {
		t.Errorf("expected version %d, got %d", 1+n, inv.Version)
	}
	if len(inv.Items) != 1+n {
		t.Errorf("expected %d items, got %d", 1+n, len(inv.Items))
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(200 + n*10)) {
		t.Errorf("expected total %d, got %s", 200+n*10, inv.TotalAmount)
	}
}
