// Package admin provides the moderation endpoints and the HTMX fragment
// views used by the admin UI.
package admin

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/platform/appctx"
)

// Handler serves admin moderation and HTML fragment endpoints.
type Handler struct {
	invoices  invoice.Repository
	suggsRepo suggestions.Repository
	differ    *invoice.Differ
}

// NewHandler creates a new admin handler.
func NewHandler(invoices invoice.Repository, suggsRepo suggestions.Repository, differ *invoice.Differ) *Handler {
	return &Handler{
		invoices:  invoices,
		suggsRepo: suggsRepo,
		differ:    differ,
	}
}

// Approve handles POST /api/admin/pending/{id}/approve.
// Approval only changes suggestion state; the invoice itself is untouched
// until an apply call lands it in a new version.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, suggestions.StatusApproved)
}

// Reject handles POST /api/admin/pending/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, suggestions.StatusRejected)
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, status string) {
	log := appctx.GetLogger(r.Context())
	id := chi.URLParam(r, "id")

	s, err := h.suggsRepo.Get(r.Context(), id)
	if err != nil {
		api.WriteNotFound(w, "suggestion not found")
		return
	}

	switch s.Status {
	case suggestions.StatusPending:
		// The only state moderation acts on.
	case status:
		// Repeating the same decision is a no-op.
		api.WriteJSON(w, http.StatusOK, s)
		return
	default:
		api.WriteConflict(w, "suggestion already "+s.Status)
		return
	}

	if err := h.suggsRepo.SetStatus(r.Context(), id, status, 0); err != nil {
		if errors.Is(err, suggestions.ErrNotFound) {
			api.WriteNotFound(w, "suggestion not found")
			return
		}
		log.Error("moderation failed", "suggestion_id", id, "error", err)
		api.WriteInternalError(w, "failed to update suggestion")
		return
	}

	log.Info("suggestion moderated", "suggestion_id", id, "status", status)

	s.Status = status
	api.WriteJSON(w, http.StatusOK, s)
}

// InvoiceFragment handles GET /admin/invoices/{id}.
// Returns an HTML fragment suitable for an htmx target, not a full page.
func (h *Handler) InvoiceFragment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invoice not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := invoiceTmpl.Execute(w, inv); err != nil {
		appctx.GetLogger(r.Context()).Error("invoice fragment render failed", "error", err)
	}
}

// previewView is the template payload for the preview fragment.
type previewView struct {
	Invoice     *invoice.Invoice
	Suggestions []*suggestions.Suggestion
}

// PreviewFragment handles GET /admin/invoices/{id}/preview.
// Shows the draft alongside its pending suggestions so a moderator can
// decide from one screen.
func (h *Handler) PreviewFragment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "invoice not found", http.StatusNotFound)
		return
	}
	suggs, err := h.suggsRepo.ListByInvoice(r.Context(), id, suggestions.StatusPending)
	if err != nil {
		suggs = nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTmpl.Execute(w, previewView{Invoice: inv, Suggestions: suggs}); err != nil {
		appctx.GetLogger(r.Context()).Error("preview fragment render failed", "error", err)
	}
}

// DiffFragment handles GET /admin/invoices/{id}/diff?from=v1&to=v2.
func (h *Handler) DiffFragment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	from, err := parseVersionParam(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "bad from version", http.StatusBadRequest)
		return
	}
	to, err := parseVersionParam(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "bad to version", http.StatusBadRequest)
		return
	}

	diff, err := h.differ.Between(r.Context(), id, from, to)
	if err != nil {
		http.Error(w, "version not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := diffTmpl.Execute(w, diff); err != nil {
		appctx.GetLogger(r.Context()).Error("diff fragment render failed", "error", err)
	}
}
