package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/platform/logutil"
)

var ErrInvalidPeriod = errors.New("invalid billing period")

// BuildRequest describes an invoice build for one client and period.
type BuildRequest struct {
	ClientID string
	DateFrom time.Time
	DateTo   time.Time
	Currency string
}

// Builder assembles draft invoices from unbilled work items.
//
// A build collects every approved, not-yet-invoiced task and expense for
// the client in the period, turns each into a line item, and stamps the
// consumed items with the new invoice ID so a second build of the same
// period yields an empty invoice rather than double billing.
type Builder struct {
	invoices Repository
	tasks    ledger.TaskRepo
	expenses ledger.ExpenseRepo
	rates    RateProvider
	log      *slog.Logger
}

func NewBuilder(invoices Repository, tasks ledger.TaskRepo, expenses ledger.ExpenseRepo, rates RateProvider, log *slog.Logger) *Builder {
	return &Builder{
		invoices: invoices,
		tasks:    tasks,
		expenses: expenses,
		rates:    rates,
		log:      logutil.NoopIfNil(log),
	}
}

// Build creates a version-1 draft invoice. An empty invoice (no billable
// items in the period) is legal and returned, not an error.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*Invoice, error) {
	if req.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidPeriod)
	}
	if req.DateTo.Before(req.DateFrom) {
		return nil, fmt.Errorf("%w: date_to precedes date_from", ErrInvalidPeriod)
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	tasks, err := b.tasks.ListBillable(ctx, req.ClientID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("listing billable tasks: %w", err)
	}
	expenses, err := b.expenses.ListBillable(ctx, req.ClientID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("listing billable expenses: %w", err)
	}

	inv := &Invoice{
		ID:       identity.NewID(),
		ClientID: req.ClientID,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Currency: req.Currency,
		Version:  1,
		Status:   StatusDraft,
		Items:    make([]LineItem, 0, len(tasks)+len(expenses)),
	}

	var taskIDs, expenseIDs []string
	for _, t := range tasks {
		inv.Items = append(inv.Items, LineItem{
			ID:          identity.NewID(),
			SourceType:  ledger.SourceTask,
			SourceID:    t.ID,
			Description: t.Description,
			Quantity:    t.Quantity,
			UnitPrice:   t.UnitPrice,
			Amount:      t.Amount(),
		})
		taskIDs = append(taskIDs, t.ID)
	}
	for _, e := range expenses {
		inv.Items = append(inv.Items, LineItem{
			ID:          identity.NewID(),
			SourceType:  ledger.SourceExpense,
			SourceID:    e.ID,
			Description: e.Description,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   e.Amount,
			Amount:      e.Amount,
		})
		expenseIDs = append(expenseIDs, e.ID)
	}

	inv.Recalculate(b.rates.RateFor(req.ClientID, req.Currency))

	if err := b.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("storing invoice: %w", err)
	}

	// Stamp consumed items after the invoice exists. If stamping fails the
	// items stay billable and the next build will pick them up again; that
	// is the safer failure mode than losing them.
	if len(taskIDs) > 0 {
		if err := b.tasks.MarkInvoiced(ctx, taskIDs, inv.ID); err != nil {
			return nil, fmt.Errorf("marking tasks invoiced: %w", err)
		}
	}
	if len(expenseIDs) > 0 {
		if err := b.expenses.MarkInvoiced(ctx, expenseIDs, inv.ID); err != nil {
			return nil, fmt.Errorf("marking expenses invoiced: %w", err)
		}
	}

	b.log.Info("invoice built",
		"invoice_id", inv.ID,
		"client_id", req.ClientID,
		"items", len(inv.Items),
		"total", inv.TotalAmount.String())

	return inv, nil
}
