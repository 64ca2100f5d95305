package auth

import (
	"log/slog"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
	"go.uber.org/fx"
)

// Module provides authentication primitives via fx.
var Module = fx.Options(
	fx.Provide(newKeyHasher),
	fx.Provide(newKeyVerifier),
	fx.Provide(newSignatureVerifier),
)

func newKeyHasher() KeyHasher {
	return NewBcryptHasher(0)
}

type verifierParams struct {
	fx.In

	Config *config.Config
	Hasher KeyHasher
	Logger *slog.Logger
}

func newKeyVerifier(p verifierParams) KeyVerifier {
	if p.Config.OperatorKeyHash == "" {
		p.Logger.Warn("operator key hash not configured, operator API is closed")
	}
	return NewAPIKeyVerifier(p.Config.OperatorKeyHash, p.Hasher)
}

func newSignatureVerifier(p verifierParams) SignatureVerifier {
	v := NewHMACVerifier(p.Config.WebhookSecret)
	if !v.Enabled() {
		p.Logger.Warn("webhook secret not configured, order events are accepted unsigned")
	}
	return v
}
