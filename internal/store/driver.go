// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/components/ledger"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Driver defines the lifecycle of a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, open files, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string
}

// Backend bundles a driver with accessors for each repository it backs.
// The repository method sets overlap (Create, Get), so a single receiver
// cannot implement them all; each accessor returns a view over the same
// underlying storage.
type Backend interface {
	Driver

	Users() identity.PartyRepo
	Sessions() identity.SessionRepo
	Tasks() ledger.TaskRepo
	Expenses() ledger.ExpenseRepo
	Invoices() invoice.Repository
	Suggestions() suggestions.Repository
	PreviewTokens() preview.Store
}
