package ledger

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/api"
	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/platform/appctx"
)

// Handler exposes work item recording over HTTP.
type Handler struct {
	tasks    TaskRepo
	expenses ExpenseRepo
}

// NewHandler creates a new ledger handler.
func NewHandler(tasks TaskRepo, expenses ExpenseRepo) *Handler {
	return &Handler{tasks: tasks, expenses: expenses}
}

// CreateTaskRequest is the request body for POST /tasks.
type CreateTaskRequest struct {
	ClientID    string          `json:"client_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Approved    bool            `json:"approved"`
}

// CreateTask handles POST /api/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}
	if req.ClientID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "client_id is required")
		return
	}
	if req.Description == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "description is required")
		return
	}
	if req.Quantity.IsZero() || req.Quantity.IsNegative() {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "quantity must be positive")
		return
	}
	if req.UnitPrice.IsNegative() {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "unit_price must not be negative")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "date: expected YYYY-MM-DD")
		return
	}

	task := &Task{
		ID:          identity.NewID(),
		ClientID:    req.ClientID,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Date:        date,
		Approved:    req.Approved,
	}
	if err := h.tasks.Create(r.Context(), task); err != nil {
		log.Error("task create failed", "error", err)
		api.WriteInternalError(w, "failed to store task")
		return
	}

	api.WriteJSON(w, http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteNotFound(w, "task not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, task)
}

// CreateExpenseRequest is the request body for POST /expenses.
type CreateExpenseRequest struct {
	ClientID    string          `json:"client_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Approved    bool            `json:"approved"`
}

// CreateExpense handles POST /api/expenses.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	log := appctx.GetLogger(r.Context())

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, api.ReasonBadRequest, "failed to parse request body")
		return
	}
	if req.ClientID == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "client_id is required")
		return
	}
	if req.Description == "" {
		api.WriteBadRequest(w, api.ReasonMissingField, "description is required")
		return
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "amount must be positive")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		api.WriteUnprocessable(w, api.ReasonValidationFailed, "date: expected YYYY-MM-DD")
		return
	}

	expense := &Expense{
		ID:          identity.NewID(),
		ClientID:    req.ClientID,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        date,
		Approved:    req.Approved,
	}
	if err := h.expenses.Create(r.Context(), expense); err != nil {
		log.Error("expense create failed", "error", err)
		api.WriteInternalError(w, "failed to store expense")
		return
	}

	api.WriteJSON(w, http.StatusCreated, expense)
}

// GetExpense handles GET /api/expenses/{id}.
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.expenses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteNotFound(w, "expense not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, expense)
}
