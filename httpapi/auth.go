package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// BearerAuth is an AuthProvider that mints a short-lived HS256 bearer token
// per request and attaches it as an Authorization header. Grounded on the
// JWT signing used by api/jwt.go, scoped down to the one thing the World's
// HTTP client needs: a valid bearer token for APIs under test that require
// auth.
type BearerAuth struct {
	Secret   []byte
	Subject  string
	Issuer   string
	TokenTTL time.Duration
}

// NewBearerAuth builds a BearerAuth with a 5 minute token lifetime.
func NewBearerAuth(secret []byte, subject, issuer string) *BearerAuth {
	return &BearerAuth{Secret: secret, Subject: subject, Issuer: issuer, TokenTTL: 5 * time.Minute}
}

// Authorize implements AuthProvider.
func (b *BearerAuth) Authorize(req *http.Request) error {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject(b.Subject).
		Issuer(b.Issuer).
		IssuedAt(now).
		Expiration(now.Add(b.TokenTTL)).
		Build()
	if err != nil {
		return fmt.Errorf("httpapi: building auth token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, b.Secret))
	if err != nil {
		return fmt.Errorf("httpapi: signing auth token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+string(signed))
	return nil
}
