package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateProvider resolves the tax rate for an invoice. Implementations may
// consult external services; the default is a static table from config.
type RateProvider interface {
	// RateFor returns the tax rate (e.g. 0.17 for 17%) for a client and
	// currency. Per-client overrides win over currency rates.
	RateFor(clientID, currency string) decimal.Decimal
}

// StaticRates is a RateProvider backed by fixed tables.
type StaticRates struct {
	defaultRate     decimal.Decimal
	byCurrency      map[string]decimal.Decimal
	clientOverrides map[string]decimal.Decimal
}

// NewStaticRates builds a StaticRates from decimal-string tables.
// Rate strings must parse as decimals; "0.17" means 17%.
func NewStaticRates(defaultRate string, byCurrency, clientOverrides map[string]string) (*StaticRates, error) {
	s := &StaticRates{
		defaultRate:     decimal.Zero,
		byCurrency:      make(map[string]decimal.Decimal),
		clientOverrides: make(map[string]decimal.Decimal),
	}

	if defaultRate != "" {
		d, err := decimal.NewFromString(defaultRate)
		if err != nil {
			return nil, fmt.Errorf("invalid default tax rate %q: %w", defaultRate, err)
		}
		s.defaultRate = d
	}

	for currency, rate := range byCurrency {
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate %q for currency %s: %w", rate, currency, err)
		}
		s.byCurrency[currency] = d
	}

	for clientID, rate := range clientOverrides {
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate %q for client %s: %w", rate, clientID, err)
		}
		s.clientOverrides[clientID] = d
	}

	return s, nil
}

func (s *StaticRates) RateFor(clientID, currency string) decimal.Decimal {
	if rate, ok := s.clientOverrides[clientID]; ok {
		return rate
	}
	if rate, ok := s.byCurrency[currency]; ok {
		return rate
	}
	return s.defaultRate
}
