package auth

import (
	"io"
	"log/slog"
	"testing"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestNewKeyHasher(t *testing.T) {
	hasher := newKeyHasher()
	bcryptHasher, ok := hasher.(*BcryptHasher)
	if !ok {
		t.Fatalf("expected *BcryptHasher, got %T", hasher)
	}
	if bcryptHasher.cost != bcrypt.DefaultCost {
		t.Fatalf("unexpected cost: %d", bcryptHasher.cost)
	}
}

func TestNewVerifiers(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p := verifierParams{
		Config: &config.Config{OperatorKeyHash: "$2a$hash", WebhookSecret: "top-secret"},
		Hasher: NewBcryptHasher(bcrypt.MinCost),
		Logger: logger,
	}

	keys, ok := newKeyVerifier(p).(*APIKeyVerifier)
	if !ok {
		t.Fatalf("expected *APIKeyVerifier")
	}
	if keys.hash != "$2a$hash" {
		t.Fatalf("unexpected hash: %q", keys.hash)
	}

	signatures, ok := newSignatureVerifier(p).(*HMACVerifier)
	if !ok {
		t.Fatalf("expected *HMACVerifier")
	}
	if string(signatures.secret) != "top-secret" {
		t.Fatalf("unexpected secret: %q", string(signatures.secret))
	}
}
