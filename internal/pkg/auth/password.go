package auth

import "golang.org/x/crypto/bcrypt"

// KeyHasher defines hashing strategy for operator API keys.
type KeyHasher interface {
	Hash(key string) (string, error)
	Compare(hash string, key string) error
}

// BcryptHasher uses bcrypt to hash keys.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates BcryptHasher with provided cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns bcrypt hash for provided key.
func (h *BcryptHasher) Hash(key string) (string, error) {
	encoded, err := bcrypt.GenerateFromPassword([]byte(key), h.cost)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Compare checks key against stored hash.
func (h *BcryptHasher) Compare(hash string, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

// APIKeyVerifier checks operator keys against a single configured bcrypt hash.
// Without a hash every key is rejected.
type APIKeyVerifier struct {
	hash   string
	hasher KeyHasher
}

// NewAPIKeyVerifier builds APIKeyVerifier.
func NewAPIKeyVerifier(hash string, hasher KeyHasher) *APIKeyVerifier {
	return &APIKeyVerifier{hash: hash, hasher: hasher}
}

// VerifyKey returns ErrInvalidKey unless key matches the configured hash.
func (v *APIKeyVerifier) VerifyKey(key string) error {
	if v.hash == "" || key == "" {
		return ErrInvalidKey
	}
	if err := v.hasher.Compare(v.hash, key); err != nil {
		return ErrInvalidKey
	}
	return nil
}
