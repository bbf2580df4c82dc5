// Package token validates bearer tokens issued by the external identity
// layer. The registry only reads the subject claim; authentication policy
// lives upstream.
package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"medledger/internal/platform/middleware"
)

// Validator checks HS256 signatures with a shared signing key.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the caller claims.
func (v *Validator) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("token missing subject")
	}
	return &middleware.TokenClaims{Subject: subject}, nil
}

// Sign mints a token for the given principal. Exists for local development
// and tests; production tokens come from the identity layer.
func (v *Validator) Sign(subject string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	return t.SignedString(v.signingKey)
}
