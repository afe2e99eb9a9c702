package suggestions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("suggestion not found")

// Repository provides suggestion storage operations.
type Repository interface {
	// Create stores a new suggestion.
	Create(ctx context.Context, s *Suggestion) error

	// Get retrieves a suggestion by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Suggestion, error)

	// ListByInvoice returns suggestions for an invoice, optionally
	// filtered by status (empty means all), ordered by creation time
	// then ID.
	ListByInvoice(ctx context.Context, invoiceID, status string) ([]*Suggestion, error)

	// SetStatus transitions a suggestion. appliedInVersion is recorded
	// only for StatusApplied; pass zero otherwise.
	SetStatus(ctx context.Context, id, status string, appliedInVersion int) error
}

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu          sync.RWMutex
	suggestions map[string]*Suggestion // by ID
	byInvoice   map[string][]string    // invoiceID -> suggestion IDs
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		suggestions: make(map[string]*Suggestion),
		byInvoice:   make(map[string][]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	c := *s
	r.suggestions[s.ID] = &c
	r.byInvoice[s.InvoiceID] = append(r.byInvoice[s.InvoiceID], s.ID)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.suggestions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *MemoryRepository) ListByInvoice(ctx context.Context, invoiceID, status string) ([]*Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Suggestion
	for _, id := range r.byInvoice[invoiceID] {
		s := r.suggestions[id]
		if status != "" && s.Status != status {
			continue
		}
		c := *s
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, id, status string, appliedInVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.suggestions[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	if status == StatusApplied {
		s.AppliedInVersion = appliedInVersion
	}
	s.UpdatedAt = time.Now()
	return nil
}
