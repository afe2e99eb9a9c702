// Package invoice provides invoice building, versioning, suggestion
// application, and diffing.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice status values.
const (
	StatusDraft     = "draft"
	StatusIssued    = "issued"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Invoice is a versioned bill for a client over a work period.
// Version starts at 1 and increases by exactly one per applied change set.
type Invoice struct {
	ID       string `json:"id"` // UUIDv7
	ClientID string `json:"client_id"`
	// DateFrom and DateTo bound the billed work period (inclusive).
	DateFrom time.Time `json:"date_from"`
	DateTo   time.Time `json:"date_to"`
	Currency string    `json:"currency"`
	Version  int       `json:"version"`
	Status   string    `json:"status"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	Items []LineItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is a single billed line. The ID is stable across versions so
// diffs can match lines; edits never reassign it.
type LineItem struct {
	ID          string          `json:"id"` // UUIDv7
	SourceType  string          `json:"source_type"`
	SourceID    string          `json:"source_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Clone returns a deep copy of the invoice. Items are copied so the
// caller can mutate the clone without touching stored state.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.Items = make([]LineItem, len(inv.Items))
	copy(c.Items, inv.Items)
	return &c
}

// FindItem returns a pointer to the line item with the given ID, or nil.
func (inv *Invoice) FindItem(itemID string) *LineItem {
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			return &inv.Items[i]
		}
	}
	return nil
}

// Recalculate recomputes subtotal, tax, and total from the line items
// using the given tax rate. Line amounts are assumed current.
func (inv *Invoice) Recalculate(taxRate decimal.Decimal) {
	subtotal := decimal.Zero
	for i := range inv.Items {
		subtotal = subtotal.Add(inv.Items[i].Amount)
	}
	inv.Subtotal = subtotal
	inv.Tax = subtotal.Mul(taxRate).Round(2)
	inv.TotalAmount = subtotal.Add(inv.Tax)
}
