package suggestions

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrForbiddenKind is returned for operations clients may never
	// perform, regardless of payload. These suggestions are not persisted.
	ErrForbiddenKind = errors.New("operation not permitted for clients")

	// ErrUnknownKind is returned for kinds the policy has never heard of.
	ErrUnknownKind = errors.New("unknown suggestion kind")

	// ErrInvalidPayload is returned when the payload fails validation for
	// an otherwise allowed kind.
	ErrInvalidPayload = errors.New("invalid suggestion payload")
)

// Policy is the single chokepoint deciding which suggestion kinds clients
// may submit. Every submission path must pass through Check before a
// suggestion is persisted; there is deliberately no bypass.
type Policy struct {
	allowed map[string]bool
	denied  map[string]bool
}

// NewPolicy returns the default policy: clients may add line items and
// update existing ones. Deleting items, editing totals directly, and
// wholesale replacement are denied.
func NewPolicy() *Policy {
	return &Policy{
		allowed: map[string]bool{
			KindAddItem:    true,
			KindUpdateItem: true,
		},
		denied: map[string]bool{
			KindDeleteItem:  true,
			KindUpdateTotal: true,
			KindMassReplace: true,
		},
	}
}

// Check validates a suggestion kind and payload against the policy.
// The deny list is checked before the allow list so a kind accidentally
// present on both is still refused.
func (p *Policy) Check(kind string, payload json.RawMessage) error {
	if p.denied[kind] {
		return fmt.Errorf("%w: %s", ErrForbiddenKind, kind)
	}
	if !p.allowed[kind] {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	switch kind {
	case KindAddItem:
		if _, err := DecodeAddItem(payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	case KindUpdateItem:
		if _, err := DecodeUpdateItem(payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	return nil
}

// AllowedKinds returns the kinds clients may submit, for documentation
// endpoints and error messages.
func (p *Policy) AllowedKinds() []string {
	return []string{KindAddItem, KindUpdateItem}
}
