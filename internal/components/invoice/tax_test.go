package invoice_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/invoice"
)

func TestStaticRates_Lookup(t *testing.T) {
	rates, err := invoice.NewStaticRates("0.05",
		map[string]string{"ILS": "0.17", "EUR": "0.19"},
		map[string]string{"client-exempt": "0"})
	if err != nil {
		t.Fatalf("NewStaticRates failed: %v", err)
	}

	cases := []struct {
		name     string
		clientID string
		currency string
		want     string
	}{
		{"currency rate", "client-1", "ILS", "0.17"},
		{"other currency rate", "client-1", "EUR", "0.19"},
		{"fallback to default", "client-1", "USD", "0.05"},
		{"client override wins over currency", "client-exempt", "ILS", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want, _ := decimal.NewFromString(tc.want)
			got := rates.RateFor(tc.clientID, tc.currency)
			if !got.Equal(want) {
				t.Errorf("RateFor(%q, %q) = %s, want %s", tc.clientID, tc.currency, got, want)
			}
		})
	}
}

func TestNewStaticRates_EmptyDefault(t *testing.T) {
	rates, err := invoice.NewStaticRates("", nil, nil)
	if err != nil {
		t.Fatalf("NewStaticRates failed: %v", err)
	}
	if !rates.RateFor("any", "USD").IsZero() {
		t.Error("empty default rate must mean zero tax")
	}
}

func TestNewStaticRates_InvalidRates(t *testing.T) {
	if _, err := invoice.NewStaticRates("seventeen", nil, nil); err == nil {
		t.Error("expected error for a non-decimal default rate")
	}
	if _, err := invoice.NewStaticRates("0", map[string]string{"ILS": "17%"}, nil); err == nil {
		t.Error("expected error for a non-decimal currency rate")
	}
	if _, err := invoice.NewStaticRates("0", nil, map[string]string{"c1": "x"}); err == nil {
		t.Error("expected error for a non-decimal client override")
	}
}
