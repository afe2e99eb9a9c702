// Package memory implements an in-process persistence driver.
// Data does not survive a restart; it is the dev-mode default.
package memory

import (
	"context"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements store.Backend over the in-memory repositories.
type Driver struct {
	users         *identity.MemoryPartyRepo
	sessions      *identity.MemorySessionRepo
	tasks         *ledger.MemoryTaskRepo
	expenses      *ledger.MemoryExpenseRepo
	invoices      *invoice.MemoryRepository
	suggestions   *suggestions.MemoryRepository
	previewTokens *preview.MemoryStore
}

// NewDriver creates a new memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Backend, error) {
	return &Driver{
		users:         identity.NewMemoryPartyRepo(),
		sessions:      identity.NewMemorySessionRepo(),
		tasks:         ledger.NewMemoryTaskRepo(),
		expenses:      ledger.NewMemoryExpenseRepo(),
		invoices:      invoice.NewMemoryRepository(),
		suggestions:   suggestions.NewMemoryRepository(),
		previewTokens: preview.NewMemoryStore(),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the memory driver.
func (d *Driver) Close() error { return nil }

func (d *Driver) Users() identity.PartyRepo { return d.users }

func (d *Driver) Sessions() identity.SessionRepo { return d.sessions }

func (d *Driver) Tasks() ledger.TaskRepo { return d.tasks }

func (d *Driver) Expenses() ledger.ExpenseRepo { return d.expenses }

func (d *Driver) Invoices() invoice.Repository { return d.invoices }

func (d *Driver) Suggestions() suggestions.Repository { return d.suggestions }

func (d *Driver) PreviewTokens() preview.Store { return d.previewTokens }

var _ store.Backend = (*Driver)(nil)
