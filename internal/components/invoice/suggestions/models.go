// Package suggestions provides the client-facing change suggestion workflow
// for invoices: submission under a preview token, optional moderation, and
// lookup by the apply engine.
package suggestions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Suggestion kinds. Only kinds on the allow list are ever persisted;
// everything else is rejected at the policy chokepoint.
const (
	KindAddItem    = "add_item"
	KindUpdateItem = "update_item"

	// Known but denied kinds. Named so the policy can distinguish a
	// forbidden operation from a typo.
	KindDeleteItem  = "delete_item"
	KindUpdateTotal = "update_total"
	KindMassReplace = "mass_replace"
)

// Suggestion statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusApplied  = "applied"
)

// Suggestion is a client-proposed change to a draft invoice.
type Suggestion struct {
	ID        string          `json:"id"` // UUIDv7
	InvoiceID string          `json:"invoice_id"`
	Token     string          `json:"-"` // preview token used at submission, never serialized
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Note      string          `json:"note,omitempty"` // free-form client comment
	Status    string          `json:"status"`
	// AppliedInVersion is the invoice version that first contains this
	// change. Zero until applied.
	AppliedInVersion int       `json:"applied_in_version,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AddItemPayload is the payload for KindAddItem.
type AddItemPayload struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Validate checks payload invariants shared by submission and apply.
func (p *AddItemPayload) Validate() error {
	if p.Description == "" {
		return fmt.Errorf("description is required")
	}
	if p.Quantity.IsNegative() || p.Quantity.IsZero() {
		return fmt.Errorf("quantity must be positive")
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price must not be negative")
	}
	return nil
}

// UpdateItemPayload is the payload for KindUpdateItem. Nil fields are
// left unchanged on apply.
type UpdateItemPayload struct {
	ItemID      string           `json:"item_id"`
	Description *string          `json:"description,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// Validate checks payload invariants shared by submission and apply.
func (p *UpdateItemPayload) Validate() error {
	if p.ItemID == "" {
		return fmt.Errorf("item_id is required")
	}
	if p.Description == nil && p.Quantity == nil && p.UnitPrice == nil {
		return fmt.Errorf("at least one field to update is required")
	}
	if p.Description != nil && *p.Description == "" {
		return fmt.Errorf("description must not be empty")
	}
	if p.Quantity != nil && (p.Quantity.IsNegative() || p.Quantity.IsZero()) {
		return fmt.Errorf("quantity must be positive")
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price must not be negative")
	}
	return nil
}

// DecodeAddItem decodes and validates an add_item payload.
func DecodeAddItem(raw json.RawMessage) (*AddItemPayload, error) {
	var p AddItemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed add_item payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeUpdateItem decodes and validates an update_item payload.
func DecodeUpdateItem(raw json.RawMessage) (*UpdateItemPayload, error) {
	var p UpdateItemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed update_item payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
