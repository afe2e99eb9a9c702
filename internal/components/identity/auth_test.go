package identity_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/workledger/workledger-go/internal/components/identity"
)

func TestHashAndVerifyPassword(t *testing.T) {
	auth := identity.NewUserAuthFast()

	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("expected PHC argon2id format, got %q", hash)
	}

	if err := auth.VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	auth := identity.NewUserAuthFast()

	h1, err := auth.HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	h2, err := auth.HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password must differ by salt")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	auth := identity.NewUserAuthFast()

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=16384,t=1,p=2$notbase64!!$also!!",
		"$bcrypt$v=19$m=16384,t=1,p=2$c2FsdA$aGFzaA",
	} {
		if err := auth.VerifyPassword(hash, "pw"); !errors.Is(err, identity.ErrInvalidPassword) {
			t.Errorf("hash %q: expected ErrInvalidPassword, got %v", hash, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	auth := identity.NewUserAuthFast()
	repo := identity.NewMemoryPartyRepo()
	ctx := context.Background()

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := repo.Create(ctx, &identity.User{Username: "alice", PasswordHash: hash}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	user, err := auth.Authenticate(ctx, repo, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("expected alice, got %q", user.Username)
	}

	if _, err := auth.Authenticate(ctx, repo, "alice", "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, repo, "nobody", "s3cret"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
