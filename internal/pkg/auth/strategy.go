package auth

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrInvalidKey       = errors.New("invalid operator key")
)

// SignatureVerifier checks that a webhook payload was signed with the shared secret.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) error
}

// KeyVerifier checks operator API keys.
type KeyVerifier interface {
	VerifyKey(key string) error
}
