package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Verifier validates the bearer tokens the transport attaches to webhook
// deliveries.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier for the shared webhook secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured. With no secret the webhook
// accepts unauthenticated deliveries (local development, emulator).
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify parses and validates the token signature and expiry.
func (v *Verifier) Verify(tokenStr string) error {
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}
