package preview

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var (
	ErrTokenNotFound = errors.New("preview token not found")
	ErrTokenExpired  = errors.New("preview token expired")
	// ErrWrongScope means the token is valid but was issued for a
	// different invoice.
	ErrWrongScope = errors.New("preview token scoped to another invoice")
)

// Store issues and validates preview tokens.
type Store interface {
	// Issue creates a new token scoped to the given invoice.
	Issue(ctx context.Context, invoiceID string, ttl time.Duration) (*Token, error)

	// Validate checks that value names a live token scoped to invoiceID.
	// Returns the token on success, or one of ErrTokenNotFound,
	// ErrTokenExpired, ErrWrongScope.
	Validate(ctx context.Context, value, invoiceID string) (*Token, error)

	// Revoke removes a token.
	Revoke(ctx context.Context, value string) error

	// CleanExpired removes all expired tokens.
	CleanExpired(ctx context.Context) error
}

// GenerateValue creates a cryptographically secure random token value.
func GenerateValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*Token),
	}
}

func (s *MemoryStore) Issue(ctx context.Context, invoiceID string, ttl time.Duration) (*Token, error) {
	value, err := GenerateValue()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	token := &Token{
		Value:     value,
		InvoiceID: invoiceID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[value] = token

	t := *token
	return &t, nil
}

func (s *MemoryStore) Validate(ctx context.Context, value, invoiceID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[value]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if token.IsExpired() {
		return nil, ErrTokenExpired
	}
	if token.InvoiceID != invoiceID {
		return nil, ErrWrongScope
	}

	t := *token
	return &t, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

func (s *MemoryStore) CleanExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, v := range s.tokens {
		if now.After(v.ExpiresAt) {
			delete(s.tokens, k)
		}
	}
	return nil
}
