// Package preview provides scoped, expiring preview tokens for invoices.
//
// A preview token grants read access to exactly one invoice. Presenting a
// valid token against a different invoice is a scope violation, not a lookup
// miss, and is reported as such.
package preview

import "time"

// DefaultTTL is the preview token lifetime when the config does not
// override it.
const DefaultTTL = time.Hour

// Token is a single-invoice preview grant.
type Token struct {
	Value     string    `json:"token"`
	InvoiceID string    `json:"invoice_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the token has expired.
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
