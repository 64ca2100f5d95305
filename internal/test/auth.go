package test

import (
	pkgAuth "github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
)

// KeyVerifierStub accepts a single operator key.
type KeyVerifierStub struct {
	Key string
}

// VerifyKey rejects every key but the configured one.
func (s KeyVerifierStub) VerifyKey(key string) error {
	if key == "" || key != s.Key {
		return pkgAuth.ErrInvalidKey
	}
	return nil
}

// SignatureVerifierStub validates signatures through an override.
type SignatureVerifierStub struct {
	VerifyFn func([]byte, string) error
}

// Verify delegates to VerifyFn or accepts the payload.
func (s SignatureVerifierStub) Verify(payload []byte, signature string) error {
	if s.VerifyFn != nil {
		return s.VerifyFn(payload, signature)
	}
	return nil
}

var _ pkgAuth.KeyVerifier = KeyVerifierStub{}
var _ pkgAuth.SignatureVerifier = SignatureVerifierStub{}
