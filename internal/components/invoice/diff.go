package invoice

import (
	"context"

	"github.com/shopspring/decimal"
)

// FieldChange records one changed field on a line item.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// ItemChange describes a line item that exists in both versions but
// differs.
type ItemChange struct {
	Item    LineItem      `json:"item"` // state in the "to" version
	Changes []FieldChange `json:"changes"`
}

// Diff is the difference between two versions of one invoice. Line items
// are matched by their stable IDs, never by position or description.
type Diff struct {
	InvoiceID   string          `json:"invoice_id"`
	FromVersion int             `json:"from_version"`
	ToVersion   int             `json:"to_version"`
	Added       []LineItem      `json:"added"`
	Removed     []LineItem      `json:"removed"`
	Changed     []ItemChange    `json:"changed"`
	TotalDelta  decimal.Decimal `json:"total_delta"` // to.Total - from.Total
}

// Empty reports whether the two versions are identical.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && d.TotalDelta.IsZero()
}

// Differ computes version-to-version invoice diffs.
type Differ struct {
	invoices Repository
}

func NewDiffer(invoices Repository) *Differ {
	return &Differ{invoices: invoices}
}

// Between loads the two version snapshots and diffs them. Diffing a
// version against itself yields an empty diff, not an error.
func (d *Differ) Between(ctx context.Context, invoiceID string, fromVersion, toVersion int) (*Diff, error) {
	from, err := d.invoices.GetVersion(ctx, invoiceID, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := d.invoices.GetVersion(ctx, invoiceID, toVersion)
	if err != nil {
		return nil, err
	}
	return Compare(from, to), nil
}

// Compare diffs two invoice snapshots. Both must belong to the same
// invoice; the caller guarantees that.
func Compare(from, to *Invoice) *Diff {
	diff := &Diff{
		InvoiceID:   to.ID,
		FromVersion: from.Version,
		ToVersion:   to.Version,
		TotalDelta:  to.TotalAmount.Sub(from.TotalAmount),
	}

	fromByID := make(map[string]*LineItem, len(from.Items))
	for i := range from.Items {
		fromByID[from.Items[i].ID] = &from.Items[i]
	}

	toSeen := make(map[string]bool, len(to.Items))
	for i := range to.Items {
		item := &to.Items[i]
		toSeen[item.ID] = true

		old, ok := fromByID[item.ID]
		if !ok {
			diff.Added = append(diff.Added, *item)
			continue
		}
		if changes := compareItems(old, item); len(changes) > 0 {
			diff.Changed = append(diff.Changed, ItemChange{Item: *item, Changes: changes})
		}
	}

	// Order of removed items follows the "from" version.
	for i := range from.Items {
		if !toSeen[from.Items[i].ID] {
			diff.Removed = append(diff.Removed, from.Items[i])
		}
	}

	return diff
}

func compareItems(old, new *LineItem) []FieldChange {
	var changes []FieldChange
	if old.Description != new.Description {
		changes = append(changes, FieldChange{Field: "description", From: old.Description, To: new.Description})
	}
	if !old.Quantity.Equal(new.Quantity) {
		changes = append(changes, FieldChange{Field: "quantity", From: old.Quantity.String(), To: new.Quantity.String()})
	}
	if !old.UnitPrice.Equal(new.UnitPrice) {
		changes = append(changes, FieldChange{Field: "unit_price", From: old.UnitPrice.String(), To: new.UnitPrice.String()})
	}
	if !old.Amount.Equal(new.Amount) {
		changes = append(changes, FieldChange{Field: "amount", From: old.Amount.String(), To: new.Amount.String()})
	}
	return changes
}
