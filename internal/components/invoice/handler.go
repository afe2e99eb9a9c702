package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/platform/appctx"
)

// Handler exposes the invoice lifecycle over HTTP.
type Handler struct {
	invoices     Repository
	suggsRepo    suggestions.Repository
	policy       *suggestions.Policy
	previews     preview.Store
	builder      *Builder
	applier      *Applier
	differ       *Differ
	previewTTL   time.Duration
	publicOrigin string
	basePath     string
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Invoices     Repository
	Suggestions  suggestions.Repository
	Policy       *suggestions.Policy
	Previews     preview.Store
	Builder      *Builder
	Applier      *Applier
	Differ       *Differ
	PreviewTTL   time.Duration
	PublicOrigin string
	BasePath     string
}

// NewHandler creates a new invoice handler.
func NewHandler(opts HandlerOptions) *Handler {
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = preview.DefaultTTL
	}
	return &Handler{
		invoices:     opts.Invoices,
		suggsRepo:    opts.Suggestions,
		policy:       opts.Policy,
		previews:     opts.Previews,
		builder:      opts.Builder,
		applier:      opts.Applier,
		differ:       opts.Differ,
		previewTTL:   opts.PreviewTTL,
		publicOrigin: strings.TrimSuffix(opts.PublicOrigin, "/"),
		basePath:     opts.BasePath,
	}
}

// BuildRequestBody is the request body for POST /invoice.build.
type BuildRequestBody struct {
	ClientID string `json:"client_id"`
	DateFrom string `json:"date_from"` // YYYY-MM-DD
	DateTo   string `json:"date_to"`   // YYYY-MM-DD
	Currency string `json:"currency"`
}

// Build handles POST /api/invoice.build.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var body BuildRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}

	from, err := parseDate(body.DateFrom)
	if err != nil {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "date_from: "+err.Error())
		return
	}
	to, err := parseDate(body.DateTo)
	if err != nil {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "date_to: "+err.Error())
		return
	}

	inv, err := h.builder.Build(r.Context(), BuildRequest{
		ClientID: body.ClientID,
		DateFrom: from,
		DateTo:   to.Add(24*time.Hour - time.Nanosecond), // inclusive end of day
		Currency: body.Currency,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPeriod) {
			api.WriteUnprocessable(w, api.ReasonValidationFailed, err.Error())
			return
		}
		log.Error("invoice build failed", "error", err)
		api.WriteInternalError(w, "failed to build invoice")
		return
	}

	api.WriteJSON(w, http.StatusCreated, inv)
}

// Get handles GET /api/invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteNotFound(w, "invoice not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, inv)
}

// IssuePreviewResponse is the response for POST /invoices/{id}/preview.
type IssuePreviewResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	URL       string `json:"url"`
}

// IssuePreview handles POST /api/invoices/{id}/preview.
// Issues a fresh token scoped to one invoice; the link is what gets
// mailed to the client.
func (h *Handler) IssuePreview(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())
	invoiceID := chi.URLParam(r, "id")

	if _, err := h.invoices.Get(r.Context(), invoiceID); err != nil {
		api.WriteNotFound(w, "invoice not found")
		return
	}

	token, err := h.previews.Issue(r.Context(), invoiceID, h.previewTTL)
	if err != nil {
		log.Error("preview token issue failed", "invoice_id", invoiceID, "error", err)
		api.WriteInternalError(w, "failed to issue preview token")
		return
	}

	log.Info("preview token issued",
		"invoice_id", invoiceID,
		"expires_at", token.ExpiresAt)

	api.WriteJSON(w, http.StatusCreated, IssuePreviewResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
		URL: fmt.Sprintf("%s%s/api/invoice.preview/%s?token=%s",
			h.publicOrigin, h.basePath, invoiceID, token.Value),
	})
}

// PreviewResponse is the body returned to a token-bearing client.
type PreviewResponse struct {
	Invoice     *Invoice                  `json:"invoice"`
	Suggestions []*suggestions.Suggestion `json:"suggestions"`
}

// Preview handles GET /api/invoice.preview/{id}?token=...
// This endpoint is token-gated, not session-gated: the bearer of a live
// token scoped to this invoice may read it, nobody else.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")

	if _, ok := h.requireToken(w, r, invoiceID); !ok {
		return
	}

	inv, err := h.invoices.Get(r.Context(), invoiceID)
	if err != nil {
		api.WriteNotFound(w, "invoice not found")
		return
	}

	// Show the client their own pending suggestions alongside the draft.
	suggs, err := h.suggsRepo.ListByInvoice(r.Context(), invoiceID, "")
	if err != nil {
		suggs = nil
	}

	api.WriteJSON(w, http.StatusOK, PreviewResponse{Invoice: inv, Suggestions: suggs})
}

// SuggestChangeRequest is the request body for POST /invoice.suggest_change.
type SuggestChangeRequest struct {
	InvoiceID string          `json:"invoice_id"`
	Token     string          `json:"token"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Note      string          `json:"note,omitempty"`
}

// SuggestChange handles POST /api/invoice.suggest_change.
//
// The policy check runs before anything is persisted: a denied kind gets
// 403 forbidden_operation and leaves no trace in the store.
func (h *Handler) SuggestChange(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req SuggestChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}
	if req.InvoiceID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invoice_id is required")
		return
	}

	if !h.validateToken(w, r, req.Token, req.InvoiceID) {
		return
	}

	if err := h.policy.Check(req.Kind, req.Payload); err != nil {
		switch {
		case errors.Is(err, suggestions.ErrForbiddenKind):
			log.Info("forbidden suggestion rejected",
				"invoice_id", req.InvoiceID, "kind", req.Kind)
			api.WriteForbidden(w, api.ReasonForbiddenOperation, err.Error())
		case errors.Is(err, suggestions.ErrUnknownKind):
			api.WriteUnprocessable(w, api.ReasonUnknownOperation, err.Error())
		default:
			api.WriteUnprocessable(w, api.ReasonValidationFailed, err.Error())
		}
		return
	}

	inv, err := h.invoices.Get(r.Context(), req.InvoiceID)
	if err != nil {
		api.WriteNotFound(w, "invoice not found")
		return
	}
	if inv.Status != StatusDraft {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "invoice no longer accepts suggestions")
		return
	}

	s := &suggestions.Suggestion{
		ID:        identity.NewID(),
		InvoiceID: req.InvoiceID,
		Token:     req.Token,
		Kind:      req.Kind,
		Payload:   req.Payload,
		Note:      req.Note,
		Status:    suggestions.StatusPending,
	}
	if err := h.suggsRepo.Create(r.Context(), s); err != nil {
		log.Error("suggestion create failed", "invoice_id", req.InvoiceID, "error", err)
		api.WriteInternalError(w, "failed to store suggestion")
		return
	}

	log.Info("suggestion recorded",
		"suggestion_id", s.ID,
		"invoice_id", req.InvoiceID,
		"kind", req.Kind)

	api.WriteJSON(w, http.StatusCreated, s)
}

// ApplyRequest is the request body for POST /invoice.apply_suggestions.
type ApplyRequest struct {
	InvoiceID     string   `json:"invoice_id"`
	SuggestionIDs []string `json:"suggestion_ids"`
}

// ApplySuggestions handles POST /api/invoice.apply_suggestions.
func (h *Handler) ApplySuggestions(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}
	if req.InvoiceID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "invoice_id is required")
		return
	}

	result, err := h.applier.Apply(r.Context(), req.InvoiceID, req.SuggestionIDs)
	if err != nil {
		switch {
		case errors.Is(err, ErrApplyConflict):
			api.WriteConflict(w, "invoice changed concurrently, retry with fresh state")
		case errors.Is(err, suggestions.ErrNotFound):
			api.WriteNotFound(w, "suggestion not found")
		case errors.Is(err, ErrNotFound):
			api.WriteNotFound(w, "invoice not found")
		case errors.Is(err, ErrNotApplicable), errors.Is(err, ErrItemGone), errors.Is(err, ErrNotDraft):
			api.WriteUnprocessable(w, api.ReasonValidationFailed, err.Error())
		default:
			log.Error("apply failed", "invoice_id", req.InvoiceID, "error", err)
			api.WriteInternalError(w, "failed to apply suggestions")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}

// Diff handles GET /api/invoices/{id}/diff?from=v1&to=v2.
// Version params accept both "v3" and "3".
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")

	fromVersion, err := parseVersion(r.URL.Query().Get("from"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "from: "+err.Error())
		return
	}
	toVersion, err := parseVersion(r.URL.Query().Get("to"))
	if err != nil {
		api.WriteBadRequest(w, api.ReasonInvalidField, "to: "+err.Error())
		return
	}

	diff, err := h.differ.Between(r.Context(), invoiceID, fromVersion, toVersion)
	if err != nil {
		switch {
		case errors.Is(err, ErrVersionNotFound):
			api.WriteNotFound(w, "invoice version not found")
		case errors.Is(err, ErrNotFound):
			api.WriteNotFound(w, "invoice not found")
		default:
			api.WriteInternalError(w, "failed to compute diff")
		}
		return
	}

	api.WriteJSON(w, http.StatusOK, diff)
}

// requireToken validates the token query parameter against the invoice.
func (h *Handler) requireToken(w http.ResponseWriter, r *http.Request, invoiceID string) (*preview.Token, bool) {
	value := r.URL.Query().Get("token")
	if value == "" {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "preview token required")
		return nil, false
	}
	token, err := h.previews.Validate(r.Context(), value, invoiceID)
	if err != nil {
		h.writeTokenError(w, r, err, invoiceID)
		return nil, false
	}
	return token, true
}

// validateToken validates a token carried in a request body.
func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request, value, invoiceID string) bool {
	if value == "" {
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "preview token required")
		return false
	}
	if _, err := h.previews.Validate(r.Context(), value, invoiceID); err != nil {
		h.writeTokenError(w, r, err, invoiceID)
		return false
	}
	return true
}

func (h *Handler) writeTokenError(w http.ResponseWriter, r *http.Request, err error, invoiceID string) {
	log := appctx.GetLogger(r.Context())
	switch {
	case errors.Is(err, preview.ErrTokenExpired):
		api.WriteUnauthorized(w, api.ReasonTokenExpired, "preview token expired")
	case errors.Is(err, preview.ErrWrongScope):
		// A real token aimed at the wrong invoice is worth noticing.
		log.Warn("preview token scope violation", "invoice_id", invoiceID)
		api.WriteForbidden(w, api.ReasonWrongScope, "preview token not valid for this invoice")
	default:
		api.WriteUnauthorized(w, api.ReasonUnauthenticated, "invalid preview token")
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func parseVersion(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("version is required")
	}
	s = strings.TrimPrefix(s, "v")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a version like v2, got %q", s)
	}
	return n, nil
}
