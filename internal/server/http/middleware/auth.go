package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/vipm-fulfillment/internal/pkg/auth"
)

const (
	// APIKeyHeader carries the operator key.
	APIKeyHeader = "X-API-Key"
	// SignatureHeader carries the hex HMAC of the webhook body.
	SignatureHeader = "X-Signature"

	maxSignedBody = 1 << 20
)

// APIKeyRequired guards operator routes.
func APIKeyRequired(verifier pkgAuth.KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := verifier.VerifyKey(c.GetHeader(APIKeyHeader)); err != nil {
			if errors.Is(err, pkgAuth.ErrInvalidKey) {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			_ = c.Error(err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Next()
	}
}

// SignatureRequired checks the webhook signature and restores the body for the handler.
func SignatureRequired(verifier pkgAuth.SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBody))
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		_ = c.Request.Body.Close()

		if err := verifier.Verify(body, c.GetHeader(SignatureHeader)); err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
