package suggestions_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
)

func TestPolicy_AllowedKinds(t *testing.T) {
	policy := suggestions.NewPolicy()

	addItem := json.RawMessage(`{"description":"extra hours","quantity":"2","unit_price":"50"}`)
	if err := policy.Check(suggestions.KindAddItem, addItem); err != nil {
		t.Errorf("add_item should pass: %v", err)
	}

	updateItem := json.RawMessage(`{"item_id":"abc","quantity":"3"}`)
	if err := policy.Check(suggestions.KindUpdateItem, updateItem); err != nil {
		t.Errorf("update_item should pass: %v", err)
	}
}

func TestPolicy_DeniedKinds(t *testing.T) {
	policy := suggestions.NewPolicy()
	payload := json.RawMessage(`{}`)

	for _, kind := range []string{
		suggestions.KindDeleteItem,
		suggestions.KindUpdateTotal,
		suggestions.KindMassReplace,
	} {
		err := policy.Check(kind, payload)
		if !errors.Is(err, suggestions.ErrForbiddenKind) {
			t.Errorf("kind %s: expected ErrForbiddenKind, got %v", kind, err)
		}
	}
}

func TestPolicy_UnknownKind(t *testing.T) {
	policy := suggestions.NewPolicy()

	err := policy.Check("set_discount", json.RawMessage(`{}`))
	if !errors.Is(err, suggestions.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestPolicy_InvalidPayload(t *testing.T) {
	policy := suggestions.NewPolicy()

	cases := []struct {
		name    string
		kind    string
		payload string
	}{
		{"add_item missing description", suggestions.KindAddItem, `{"quantity":"1","unit_price":"10"}`},
		{"add_item zero quantity", suggestions.KindAddItem, `{"description":"x","quantity":"0","unit_price":"10"}`},
		{"add_item negative price", suggestions.KindAddItem, `{"description":"x","quantity":"1","unit_price":"-5"}`},
		{"add_item malformed json", suggestions.KindAddItem, `{`},
		{"update_item missing item_id", suggestions.KindUpdateItem, `{"quantity":"1"}`},
		{"update_item no fields", suggestions.KindUpdateItem, `{"item_id":"abc"}`},
		{"update_item empty description", suggestions.KindUpdateItem, `{"item_id":"abc","description":""}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Check(tc.kind, json.RawMessage(tc.payload))
			if !errors.Is(err, suggestions.ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestPolicy_DenyWinsOverAllow(t *testing.T) {
	// A forbidden kind must be refused as forbidden even with a payload
	// that would validate for an allowed kind.
	policy := suggestions.NewPolicy()
	payload := json.RawMessage(`{"description":"x","quantity":"1","unit_price":"10"}`)

	err := policy.Check(suggestions.KindDeleteItem, payload)
	if !errors.Is(err, suggestions.ErrForbiddenKind) {
		t.Errorf("expected ErrForbiddenKind, got %v", err)
	}
}

func TestUpdateItemPayload_PartialFields(t *testing.T) {
	raw := json.RawMessage(`{"item_id":"abc","description":"revised"}`)
	p, err := suggestions.DecodeUpdateItem(raw)
	if err != nil {
		t.Fatalf("DecodeUpdateItem failed: %v", err)
	}
	if p.Description == nil || *p.Description != "revised" {
		t.Errorf("expected description to be set")
	}
	if p.Quantity != nil || p.UnitPrice != nil {
		t.Errorf("unset fields should stay nil")
	}
}
