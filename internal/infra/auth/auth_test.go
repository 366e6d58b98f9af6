package auth_test

import (
	"testing"
	"time"

	"storefront/internal/infra/auth"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPasswordVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	v := auth.NewBcryptPasswordVerifier()
	assert.True(t, v.Verify(string(hash), "s3cret-pass"))
	assert.False(t, v.Verify(string(hash), "wrong"))
	assert.False(t, v.Verify("", "s3cret-pass"))
}

func TestJWTIssuer_Issue(t *testing.T) {
	now := time.Now()
	iss := auth.NewJWTIssuer("test-secret", time.Hour)

	signed, exp, err := iss.Issue("admin@example.com", "ADMIN", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())

	tok, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "admin@example.com", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}
