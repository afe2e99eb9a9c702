package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/platform/logutil"
)

var (
	// ErrApplyConflict means the invoice kept changing under the apply
	// operation and the bounded retries were exhausted.
	ErrApplyConflict = errors.New("invoice changed concurrently, apply aborted")

	// ErrNotApplicable means a referenced suggestion cannot be applied in
	// its current state (rejected, or pending while moderation is on).
	ErrNotApplicable = errors.New("suggestion not applicable")

	// ErrNotDraft means the invoice has left the draft state and no
	// longer accepts changes.
	ErrNotDraft = errors.New("invoice is not a draft")

	// ErrItemGone means an update_item suggestion references a line item
	// that is not present in the current invoice version.
	ErrItemGone = errors.New("line item not found in current version")
)

// applyRetries bounds how many times an apply re-reads and retries after
// losing a CAS race before giving up with ErrApplyConflict.
const applyRetries = 3

// ApplyResult reports the outcome of an apply operation.
type ApplyResult struct {
	Invoice *Invoice `json:"invoice"`
	// Applied lists suggestion IDs incorporated by this call.
	Applied []string `json:"applied"`
	// Skipped lists suggestion IDs that were already applied earlier.
	// Re-submitting them is legal and changes nothing.
	Skipped []string `json:"skipped"`
}

// Applier folds approved suggestions into an invoice as a single new
// version.
//
// The whole set is applied atomically: every suggestion is validated
// against the same base snapshot, and either all of them land in version
// N+1 or the invoice is left untouched. Already-applied suggestions are
// skipped, which makes the operation idempotent. Concurrent applies are
// serialized per invoice; a lost CAS race is retried against the fresh
// state a bounded number of times.
type Applier struct {
	invoices    Repository
	suggestions suggestions.Repository
	rates       RateProvider
	moderation  bool
	log         *slog.Logger

	mu sync.Mutex
	// locks serializes applies per invoice. Entries are never evicted, so
	// the map grows with the number of distinct invoices applied to over
	// the process lifetime.
	locks map[string]*sync.Mutex
}

func NewApplier(invoices Repository, suggs suggestions.Repository, rates RateProvider, moderation bool, log *slog.Logger) *Applier {
	return &Applier{
		invoices:    invoices,
		suggestions: suggs,
		rates:       rates,
		moderation:  moderation,
		log:         logutil.NoopIfNil(log),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (a *Applier) lockFor(invoiceID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[invoiceID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[invoiceID] = l
	}
	return l
}

// Apply folds the given suggestions into the invoice, producing at most one
// new version. Suggestions are applied in the order the caller listed them
// (duplicates collapse onto the first occurrence). Returns the resulting
// invoice state together with which suggestions were applied and which were
// skipped as already applied.
func (a *Applier) Apply(ctx context.Context, invoiceID string, suggestionIDs []string) (*ApplyResult, error) {
	if len(suggestionIDs) == 0 {
		return nil, fmt.Errorf("%w: no suggestions given", ErrNotApplicable)
	}

	// Load and screen the suggestions up front. Missing ones and wrong
	// invoice references fail the whole request before any mutation.
	var pending []*suggestions.Suggestion
	var skipped []string
	seen := make(map[string]bool)
	for _, id := range suggestionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		s, err := a.suggestions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.InvoiceID != invoiceID {
			return nil, fmt.Errorf("%w: suggestion %s belongs to another invoice", ErrNotApplicable, id)
		}

		switch s.Status {
		case suggestions.StatusApplied:
			skipped = append(skipped, s.ID)
		case suggestions.StatusRejected:
			return nil, fmt.Errorf("%w: suggestion %s was rejected", ErrNotApplicable, id)
		case suggestions.StatusPending:
			if a.moderation {
				return nil, fmt.Errorf("%w: suggestion %s awaits moderation", ErrNotApplicable, id)
			}
			pending = append(pending, s)
		case suggestions.StatusApproved:
			pending = append(pending, s)
		default:
			return nil, fmt.Errorf("%w: suggestion %s has status %q", ErrNotApplicable, id, s.Status)
		}
	}

	// Everything already applied: idempotent no-op, current state returned.
	if len(pending) == 0 {
		inv, err := a.invoices.Get(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{Invoice: inv, Skipped: skipped}, nil
	}

	lock := a.lockFor(invoiceID)
	lock.Lock()
	defer lock.Unlock()

	var committed *Invoice
	var lastErr error
	for attempt := 0; attempt < applyRetries; attempt++ {
		base, err := a.invoices.Get(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if base.Status != StatusDraft {
			return nil, fmt.Errorf("%w: status is %s", ErrNotDraft, base.Status)
		}

		next := base.Clone()
		next.Version = base.Version + 1
		for _, s := range pending {
			if err := a.applyOne(next, s); err != nil {
				return nil, err
			}
		}
		next.Recalculate(a.rates.RateFor(next.ClientID, next.Currency))

		if err := a.invoices.UpdateCAS(ctx, next, base.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		committed = next
		break
	}
	if committed == nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyConflict, lastErr)
	}

	applied := make([]string, 0, len(pending))
	for _, s := range pending {
		if err := a.suggestions.SetStatus(ctx, s.ID, suggestions.StatusApplied, committed.Version); err != nil {
			// The version is committed; a failed status write only costs
			// idempotency for this one suggestion. Log and keep going.
			a.log.Error("failed to mark suggestion applied",
				"suggestion_id", s.ID, "error", err)
			continue
		}
		applied = append(applied, s.ID)
	}

	a.log.Info("suggestions applied",
		"invoice_id", invoiceID,
		"version", committed.Version,
		"applied", len(applied),
		"skipped", len(skipped))

	return &ApplyResult{Invoice: committed, Applied: applied, Skipped: skipped}, nil
}

// applyOne folds a single suggestion into the working copy. Any failure
// aborts the whole apply; partial application never reaches the store.
func (a *Applier) applyOne(inv *Invoice, s *suggestions.Suggestion) error {
	switch s.Kind {
	case suggestions.KindAddItem:
		p, err := suggestions.DecodeAddItem(s.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotApplicable, err)
		}
		inv.Items = append(inv.Items, LineItem{
			ID:          identity.NewID(),
			SourceType:  ledger.SourceManual,
			Description: p.Description,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			Amount:      p.Quantity.Mul(p.UnitPrice),
		})
		return nil

	case suggestions.KindUpdateItem:
		p, err := suggestions.DecodeUpdateItem(s.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotApplicable, err)
		}
		item := inv.FindItem(p.ItemID)
		if item == nil {
			return fmt.Errorf("%w: %s", ErrItemGone, p.ItemID)
		}
		if p.Description != nil {
			item.Description = *p.Description
		}
		if p.Quantity != nil {
			item.Quantity = *p.Quantity
		}
		if p.UnitPrice != nil {
			item.UnitPrice = *p.UnitPrice
		}
		item.Amount = item.Quantity.Mul(item.UnitPrice)
		return nil

	default:
		// Persisted suggestions passed the policy, so this only happens
		// if the store was tampered with.
		return fmt.Errorf("%w: kind %q", ErrNotApplicable, s.Kind)
	}
}
