// Package ledger provides billable work items: tasks and expenses.
// Items accumulate per client and are consumed by the invoice builder.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task is a unit of billable work logged against a client.
type Task struct {
	ID          string          `json:"id"` // UUIDv7
	ClientID    string          `json:"client_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`   // hours or units
	UnitPrice   decimal.Decimal `json:"unit_price"` // price per unit in invoice currency
	Date        time.Time       `json:"date"`
	Approved    bool            `json:"approved"`
	// InvoicedBy is the ID of the invoice that consumed this task.
	// Empty until the task has been billed.
	InvoicedBy string    `json:"invoiced_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Amount returns quantity * unit price.
func (t *Task) Amount() decimal.Decimal {
	return t.Quantity.Mul(t.UnitPrice)
}

// Expense is a billable cost passed through to a client.
type Expense struct {
	ID          string          `json:"id"` // UUIDv7
	ClientID    string          `json:"client_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Approved    bool            `json:"approved"`
	InvoicedBy  string          `json:"invoiced_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Source type tags recorded on invoice line items so a line can always be
// traced back to the work item it bills.
const (
	SourceTask    = "task"
	SourceExpense = "expense"
	SourceManual  = "manual" // added via an applied suggestion
)
