// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements store.Backend using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Backend, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "workledger.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on record structs
	if err := db.AutoMigrate(
		&store.UserRecord{},
		&store.SessionRecord{},
		&store.TaskRecord{},
		&store.ExpenseRecord{},
		&store.InvoiceRecord{},
		&store.InvoiceVersionRecord{},
		&store.SuggestionRecord{},
		&store.PreviewTokenRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Users() identity.PartyRepo { return &userStore{db: d.db} }

func (d *Driver) Sessions() identity.SessionRepo { return &sessionStore{db: d.db} }

func (d *Driver) Tasks() ledger.TaskRepo { return &taskStore{db: d.db} }

func (d *Driver) Expenses() ledger.ExpenseRepo { return &expenseStore{db: d.db} }

func (d *Driver) Invoices() invoice.Repository { return &invoiceStore{db: d.db} }

func (d *Driver) Suggestions() suggestions.Repository { return &suggestionStore{db: d.db} }

func (d *Driver) PreviewTokens() preview.Store { return &previewStore{db: d.db} }

// unixNano converts a timestamp for storage. The zero time maps to 0.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// fromUnixNano is the inverse of unixNano.
func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// parseDec parses a stored decimal column. Empty columns read as zero.
func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

var _ store.Backend = (*Driver)(nil)
