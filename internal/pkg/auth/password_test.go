package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewBcryptHasher_DefaultCost(t *testing.T) {
	hasher := NewBcryptHasher(0)
	if hasher.cost != bcrypt.DefaultCost {
		t.Fatalf("unexpected cost: %d", hasher.cost)
	}
}

func TestNewBcryptHasher_CustomCost(t *testing.T) {
	cost := bcrypt.DefaultCost + 2
	hasher := NewBcryptHasher(cost)
	if hasher.cost != cost {
		t.Fatalf("unexpected cost: %d", hasher.cost)
	}
}

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.DefaultCost)
	hash, err := hasher.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := hasher.Compare(hash, "secret"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := hasher.Compare(hash, "wrong"); err == nil {
		t.Fatal("expected compare error for wrong key")
	}
}

func TestBcryptHasher_HashError(t *testing.T) {
	hasher := &BcryptHasher{cost: bcrypt.MaxCost + 1}
	if _, err := hasher.Hash("key"); err == nil {
		t.Fatal("expected hash error for invalid cost")
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("operator-key")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	verifier := NewAPIKeyVerifier(hash, hasher)
	if err := verifier.VerifyKey("operator-key"); err != nil {
		t.Fatalf("expected key to be accepted, got %v", err)
	}
	for _, key := range []string{"", "wrong"} {
		if err := verifier.VerifyKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
	}

	closed := NewAPIKeyVerifier("", hasher)
	if err := closed.VerifyKey("operator-key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected closed verifier to reject, got %v", err)
	}
}
