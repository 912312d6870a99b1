package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "sma-identity", Audience: []string{"enrollment"}})
	token, expiresAt, err := svc.IssueToken("u1", models.RoleAdmin, "user@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "sma-identity", Audience: []string{"enrollment"}})
	sign := func(secret string, claims *models.JWTClaims) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}
	valid := func() *models.JWTClaims {
		return &models.JWTClaims{
			UserID: "u1",
			Role:   models.RoleStudent,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "sma-identity",
				Audience:  jwt.ClaimStrings{"enrollment"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := valid()
	wrongAudience.Audience = jwt.ClaimStrings{"grades"}
	noRole := valid()
	noRole.Role = ""

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   sign("other", valid()),
		"expired":        sign("secret", expired),
		"wrong issuer":   sign("secret", wrongIssuer),
		"wrong audience": sign("secret", wrongAudience),
		"missing role":   sign("secret", noRole),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
