package auth

import (
	"testing"
	"time"

	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Issue_Resolve(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("secret")

	token, err := v.Issue("42", time.Minute)
	req.NoError(err)

	uid, err := v.Resolve(token)
	req.NoError(err)
	req.Equal(domain.UserID("42"), uid)
}

func TestVerifier_Rejects(t *testing.T) {
	good := NewVerifier("secret")
	expired, err := good.Issue("42", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewVerifier("other").Issue("42", time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject: "42",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"wrong secret", foreign},
		{"no subject", noSubject},
		{"wrong algorithm", wrongAlg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := good.Resolve(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
