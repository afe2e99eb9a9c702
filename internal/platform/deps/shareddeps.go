// Package deps provides shared dependencies for all services.
package deps

import (
	"sync"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/platform/cache"
	"github.com/workledger/workledger-go/internal/platform/config"
	"github.com/workledger/workledger-go/internal/platform/http/realip"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps holds shared dependencies for all services in the monolith.
// Services resolve their collaborators from here instead of constructing
// their own, so every service sees the same repos.
type Deps struct {
	// Identity (for session-gated endpoints)
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Work ledger
	TaskRepo    ledger.TaskRepo
	ExpenseRepo ledger.ExpenseRepo

	// Invoicing
	InvoiceRepo    invoice.Repository
	SuggestionRepo suggestions.Repository
	PreviewTokens  preview.Store
	Policy         *suggestions.Policy
	Builder        *invoice.Builder
	Applier        *invoice.Applier
	Differ         *invoice.Differ
	TaxRates       invoice.RateProvider

	// Config (for handlers that need config values)
	Config *config.Config

	// Cache provides cache access for interceptors (rate limiting)
	Cache cache.CacheWithCounter

	// RealIP provides trusted-proxy-aware client IP extraction.
	// Single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
