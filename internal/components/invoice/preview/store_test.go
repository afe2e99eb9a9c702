package preview_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/workledger/workledger-go/internal/components/invoice/preview"
)

func TestMemoryStore_IssueAndValidate(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, "inv-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token.Value == "" {
		t.Fatal("token value should not be empty")
	}
	if token.InvoiceID != "inv-1" {
		t.Errorf("expected invoice scope inv-1, got %q", token.InvoiceID)
	}

	got, err := store.Validate(ctx, token.Value, "inv-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Value != token.Value {
		t.Errorf("token mismatch")
	}
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	store := preview.NewMemoryStore()

	token, err := store.Issue(context.Background(), "inv-1", 0)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl < 59*time.Minute || ttl > 61*time.Minute {
		t.Errorf("expected default TTL of one hour, got %v", ttl)
	}
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	store := preview.NewMemoryStore()

	_, err := store.Validate(context.Background(), "no-such-token", "inv-1")
	if !errors.Is(err, preview.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMemoryStore_ExpiredToken(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, "inv-1", time.Nanosecond)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, err = store.Validate(ctx, token.Value, "inv-1")
	if !errors.Is(err, preview.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMemoryStore_WrongScope(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, "inv-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// A live token for one invoice must not open another.
	_, err = store.Validate(ctx, token.Value, "inv-2")
	if !errors.Is(err, preview.ErrWrongScope) {
		t.Errorf("expected ErrWrongScope, got %v", err)
	}
}

func TestMemoryStore_Revoke(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, "inv-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := store.Revoke(ctx, token.Value); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	_, err = store.Validate(ctx, token.Value, "inv-1")
	if !errors.Is(err, preview.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound after revoke, got %v", err)
	}
}

func TestMemoryStore_CleanExpired(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	expired, _ := store.Issue(ctx, "inv-1", time.Nanosecond)
	live, _ := store.Issue(ctx, "inv-1", time.Hour)
	time.Sleep(5 * time.Millisecond)

	if err := store.CleanExpired(ctx); err != nil {
		t.Fatalf("CleanExpired failed: %v", err)
	}

	if _, err := store.Validate(ctx, expired.Value, "inv-1"); !errors.Is(err, preview.ErrTokenNotFound) {
		t.Errorf("expected expired token removed, got %v", err)
	}
	if _, err := store.Validate(ctx, live.Value, "inv-1"); err != nil {
		t.Errorf("live token should survive cleanup: %v", err)
	}
}

func TestTokensAreUnique(t *testing.T) {
	store := preview.NewMemoryStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := store.Issue(ctx, "inv-1", time.Hour)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if seen[token.Value] {
			t.Fatal("duplicate token value issued")
		}
		seen[token.Value] = true
	}
}
