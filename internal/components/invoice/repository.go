package invoice

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrVersionNotFound = errors.New("invoice version not found")
	// ErrVersionConflict means the stored version no longer matches the
	// version the caller read. The caller must re-read and retry.
	ErrVersionConflict = errors.New("invoice version conflict")
)

// Repository provides invoice storage with optimistic concurrency.
//
// UpdateCAS is the only mutation path for existing invoices: it replaces the
// stored invoice only when the stored version equals expectedVersion, so two
// concurrent apply operations can never both land on the same base version.
type Repository interface {
	// Create stores a new invoice and its v1 snapshot.
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves the current state of an invoice.
	// Returns ErrNotFound if the invoice does not exist.
	Get(ctx context.Context, id string) (*Invoice, error)

	// UpdateCAS replaces the invoice iff the stored version equals
	// expectedVersion, then records inv as a new version snapshot.
	// Returns ErrVersionConflict on a lost race.
	UpdateCAS(ctx context.Context, inv *Invoice, expectedVersion int) error

	// GetVersion retrieves a historical snapshot of the invoice.
	// Returns ErrVersionNotFound if that version was never recorded.
	GetVersion(ctx context.Context, id string, version int) (*Invoice, error)
}

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice          // by ID, current state
	versions map[string]map[int]*Invoice // ID -> version -> snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		invoices: make(map[string]*Invoice),
		versions: make(map[string]map[int]*Invoice),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	c := inv.Clone()
	r.invoices[inv.ID] = c
	r.versions[inv.ID] = map[int]*Invoice{inv.Version: inv.Clone()}
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.Clone(), nil
}

func (r *MemoryRepository) UpdateCAS(ctx context.Context, inv *Invoice, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}

	inv.UpdatedAt = time.Now()
	r.invoices[inv.ID] = inv.Clone()
	r.versions[inv.ID][inv.Version] = inv.Clone()
	return nil
}

func (r *MemoryRepository) GetVersion(ctx context.Context, id string, version int) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots, ok := r.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	snap, ok := snapshots[version]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return snap.Clone(), nil
}
