// Package auth resolves bearer tokens into user identities.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const issuer = "telehealth"

// Verifier checks HS256 tokens signed with a shared secret. The identity is
// the "sub" claim.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Issue creates a signed token for uid. Used by tooling and tests; login is
// handled elsewhere.
func (v *Verifier) Issue(uid domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(uid),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Resolve returns the identity carried by token or ErrInvalidToken.
func (v *Verifier) Resolve(token string) (domain.UserID, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	uid, err := domain.ParseUserID(claims.Subject)
	if err != nil {
		return "", ErrInvalidToken
	}
	return uid, nil
}
