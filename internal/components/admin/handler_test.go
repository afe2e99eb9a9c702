package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/admin"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
)

type fixture struct {
	invoices *invoice.MemoryRepository
	suggs    *suggestions.MemoryRepository
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	invoices := invoice.NewMemoryRepository()
	suggs := suggestions.NewMemoryRepository()
	h := admin.NewHandler(invoices, suggs, invoice.NewDiffer(invoices))

	r := chi.NewRouter()
	r.Post("/pending/{id}/approve", h.Approve)
	r.Post("/pending/{id}/reject", h.Reject)
	r.Get("/invoices/{id}", h.InvoiceFragment)
	r.Get("/invoices/{id}/preview", h.PreviewFragment)
	r.Get("/invoices/{id}/diff", h.DiffFragment)

	return &fixture{invoices: invoices, suggs: suggs, router: r}
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedInvoice(t *testing.T, id string) {
	t.Helper()
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("bad date %q: %v", s, err)
		}
		return d
	}
	inv := &invoice.Invoice{
		ID:       id,
		ClientID: "client-1",
		Currency: "USD",
		DateFrom: day("2025-06-01"),
		DateTo:   day("2025-06-30"),
		Version:  1,
		Status:   invoice.StatusDraft,
		Items: []invoice.LineItem{
			{
				ID:          "item-1",
				Description: "consulting",
				Quantity:    decimal.NewFromInt(3),
				UnitPrice:   decimal.NewFromInt(100),
				Amount:      decimal.NewFromInt(300),
			},
		},
		Subtotal:    decimal.NewFromInt(300),
		TotalAmount: decimal.NewFromInt(300),
	}
	if err := f.invoices.Create(context.Background(), inv); err != nil {
		t.Fatalf("seed invoice failed: %v", err)
	}
}

func (f *fixture) seedSuggestion(t *testing.T, id, status string) {
	t.Helper()
	s := &suggestions.Suggestion{
		ID:        id,
		InvoiceID: "inv-1",
		Kind:      suggestions.KindAddItem,
		Payload:   json.RawMessage(`{"description":"x","quantity":"1","unit_price":"10"}`),
		Note:      "forgot this one",
		Status:    status,
	}
	if err := f.suggs.Create(context.Background(), s); err != nil {
		t.Fatalf("seed suggestion failed: %v", err)
	}
}

func TestHandler_Approve(t *testing.T) {
	f := newFixture(t)
	f.seedSuggestion(t, "sug-1", suggestions.StatusPending)

	rec := f.do(t, http.MethodPost, "/pending/sug-1/approve")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var s suggestions.Suggestion
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if s.Status != suggestions.StatusApproved {
		t.Errorf("expected approved, got %q", s.Status)
	}

	stored, _ := f.suggs.Get(context.Background(), "sug-1")
	if stored.Status != suggestions.StatusApproved {
		t.Errorf("approval not persisted, got %q", stored.Status)
	}
}

func TestHandler_Reject(t *testing.T) {
	f := newFixture(t)
	f.seedSuggestion(t, "sug-1", suggestions.StatusPending)

	rec := f.do(t, http.MethodPost, "/pending/sug-1/reject")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	stored, _ := f.suggs.Get(context.Background(), "sug-1")
	if stored.Status != suggestions.StatusRejected {
		t.Errorf("rejection not persisted, got %q", stored.Status)
	}
}

func TestHandler_ModerateIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedSuggestion(t, "sug-1", suggestions.StatusApproved)

	// Repeating the same decision is a no-op, not an error.
	rec := f.do(t, http.MethodPost, "/pending/sug-1/approve")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for repeated approve, got %d", rec.Code)
	}
}

func TestHandler_ModerateConflict(t *testing.T) {
	f := newFixture(t)
	f.seedSuggestion(t, "sug-1", suggestions.StatusRejected)

	rec := f.do(t, http.MethodPost, "/pending/sug-1/approve")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when flipping a rejected suggestion, got %d", rec.Code)
	}
}

func TestHandler_ModerateApplied(t *testing.T) {
	f := newFixture(t)
	f.seedSuggestion(t, "sug-1", suggestions.StatusApplied)

	rec := f.do(t, http.MethodPost, "/pending/sug-1/reject")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when rejecting an applied suggestion, got %d", rec.Code)
	}
}

func TestHandler_ModerateNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/pending/missing/approve")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_InvoiceFragment(t *testing.T) {
	f := newFixture(t)
	f.seedInvoice(t, "inv-1")

	rec := f.do(t, http.MethodGet, "/invoices/inv-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML content type, got %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"Invoice inv-1", "v1", "consulting", "300 USD"} {
		if !strings.Contains(body, want) {
			t.Errorf("fragment missing %q:\n%s", want, body)
		}
	}

	rec = f.do(t, http.MethodGet, "/invoices/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_PreviewFragment(t *testing.T) {
	f := newFixture(t)
	f.seedInvoice(t, "inv-1")
	f.seedSuggestion(t, "sug-1", suggestions.StatusPending)
	f.seedSuggestion(t, "sug-2", suggestions.StatusRejected)

	rec := f.do(t, http.MethodGet, "/invoices/inv-1/preview")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "suggestion-sug-1") {
		t.Errorf("pending suggestion missing from fragment:\n%s", body)
	}
	// Only pending suggestions are up for moderation.
	if strings.Contains(body, "suggestion-sug-2") {
		t.Errorf("rejected suggestion must not appear:\n%s", body)
	}
	if !strings.Contains(body, "hx-post") {
		t.Errorf("fragment missing htmx actions:\n%s", body)
	}
}

func TestHandler_PreviewFragmentEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedInvoice(t, "inv-1")

	rec := f.do(t, http.MethodGet, "/invoices/inv-1/preview")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No pending suggestions") {
		t.Errorf("expected empty state, got:\n%s", rec.Body.String())
	}
}

func TestHandler_DiffFragment(t *testing.T) {
	f := newFixture(t)
	f.seedInvoice(t, "inv-1")

	next, _ := f.invoices.Get(context.Background(), "inv-1")
	next.Version = 2
	next.Items[0].Quantity = decimal.NewFromInt(5)
	next.Items[0].Amount = decimal.NewFromInt(500)
	next.Recalculate(decimal.Zero)
	if err := f.invoices.UpdateCAS(context.Background(), next, 1); err != nil {
		t.Fatalf("UpdateCAS failed: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/invoices/inv-1/diff?from=v1&to=v2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Changes v1 to v2") {
		t.Errorf("fragment missing version header:\n%s", body)
	}
	if !strings.Contains(body, "quantity") {
		t.Errorf("fragment missing field change:\n%s", body)
	}

	rec = f.do(t, http.MethodGet, "/invoices/inv-1/diff?from=v1&to=v9")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing version, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/invoices/inv-1/diff?from=x&to=v2")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad version, got %d", rec.Code)
	}
}
