package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// HMACVerifier validates hex encoded HMAC-SHA256 payload signatures.
// An empty secret disables the check.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier builds HMACVerifier with provided secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *HMACVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Sign returns the hex signature of payload.
func (v *HMACVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature, optionally prefixed with "sha256=", against payload.
func (v *HMACVerifier) Verify(payload []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return ErrInvalidSignature
	}
	expected, _ := hex.DecodeString(v.Sign(payload))
	if !hmac.Equal(expected, got) {
		return ErrInvalidSignature
	}
	return nil
}
