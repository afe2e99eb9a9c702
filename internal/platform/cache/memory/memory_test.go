package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/workledger/workledger-go/internal/platform/cache"
	"github.com/workledger/workledger-go/internal/platform/cache/memory"
)

func newCache(t *testing.T) *memory.Cache {
	t.Helper()
	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("expected v, got %q", got)
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("abc"), time.Minute)
	got, _ := c.Get(ctx, "k")
	got[0] = 'x'

	fresh, _ := c.Get(ctx, "k")
	if string(fresh) != "abc" {
		t.Error("mutating a returned value must not affect the cache")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}

	exists, err := c.Exists(ctx, "k")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expired key must not exist")
	}
}

func TestCache_Delete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCache_Increment(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, _, err := c.Increment(ctx, "hits", 1, time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if count != want {
			t.Errorf("expected count %d, got %d", want, count)
		}
	}

	got, err := c.GetCount(ctx, "hits")
	if err != nil {
		t.Fatalf("GetCount failed: %v", err)
	}
	if got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestCache_IncrementWindowReset(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Increment(ctx, "hits", 5, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	// An expired counter restarts from the delta.
	count, _, err := c.Increment(ctx, "hits", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected window reset to 1, got %d", count)
	}
}

func TestCache_Reset(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	c.Increment(ctx, "hits", 10, time.Minute)
	if err := c.Reset(ctx, "hits"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	got, _ := c.GetCount(ctx, "hits")
	if got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}
