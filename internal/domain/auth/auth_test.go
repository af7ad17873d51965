package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appctx "dairyflow/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("0123456789abcdef0123"))

	token, exp, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID:   "op-1",
		TenantID: "acme",
		Email:    "op@acme.test",
		Roles:    []string{RoleAccountant},
	})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", user.UserID)
	assert.Equal(t, "acme", user.TenantID)
	assert.Equal(t, []string{RoleAccountant}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("0123456789abcdef0123"))
	token, _, err := issuer.GenerateAccessToken(appctx.UserContext{UserID: "op-1", TenantID: "acme"})
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewJWTService(DefaultJWTConfig("another-secret-value")).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewJWTService(DefaultJWTConfig("0123456789abcdef0123"))
		late.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
		_, err := late.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, _, err := issuer.GenerateAccessToken(appctx.UserContext{UserID: "op-1"})
		assert.Error(t, err)
	})
}

func TestGatewayVerifier(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("gw-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	v, err := NewGatewayVerifier(string(h))
	require.NoError(t, err)

	assert.NoError(t, v.Verify("gw-secret"))
	assert.ErrorIs(t, v.Verify("wrong"), ErrGatewayKey)
	assert.ErrorIs(t, v.Verify(""), ErrGatewayKey)

	_, err = NewGatewayVerifier("plain-text")
	assert.Error(t, err)
}
