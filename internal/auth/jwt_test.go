package auth

import (
	"testing"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/testutil"
	"auth_api/internal/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func jwtTestUser(role string) *user.User {
	u := &user.User{
		ExternalUUID: uuid.New(),
		Username:     "jwt-user",
		Role:         role,
		Resources:    []string{"reports"},
	}
	u.ID = uuid.New()
	return u
}

func TestJWTService_IssueAndParse(t *testing.T) {
	svc := NewJWTService(testutil.TestConfig(), zap.NewNop())
	u := jwtTestUser(common.RoleUser)

	access, err := svc.IssueAccessToken(u)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, access.Type)
	assert.Equal(t, u.ID, access.UserID)
	assert.NotEmpty(t, access.JTI)

	claims, err := svc.ParseToken(access.Raw)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, common.RoleUser, claims.Role)
	assert.Equal(t, u.ExternalUUID, claims.UserUUID())
	assert.Equal(t, u.ID, claims.UserID())
	assert.Equal(t, []string{"reports"}, claims.Resources)
	assert.Equal(t, access.JTI, claims.ID)
	assert.Equal(t, "auth_api_test", claims.Issuer)

	refresh, err := svc.IssueRefreshToken(u)
	require.NoError(t, err)
	claims, err = svc.ParseToken(refresh.Raw)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
	assert.Empty(t, claims.Role)
	assert.Equal(t, uuid.Nil, claims.UserUUID())
	assert.NotEqual(t, access.JTI, refresh.JTI)
}

func TestJWTService_Lifetimes(t *testing.T) {
	cfg := testutil.TestConfig()
	svc := NewJWTService(cfg, zap.NewNop())
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	for _, tc := range []struct {
		role    string
		access  time.Duration
		refresh time.Duration
	}{
		{common.RoleUser, cfg.JWTUserAccessTokenExpiry, cfg.JWTUserRefreshTokenExpiry},
		{common.RoleAdmin, cfg.JWTUserAccessTokenExpiry, cfg.JWTUserRefreshTokenExpiry},
		{common.RoleTech, cfg.JWTTechAccessTokenExpiry, cfg.JWTTechRefreshTokenExpiry},
	} {
		u := jwtTestUser(tc.role)
		access, err := svc.IssueAccessToken(u)
		require.NoError(t, err)
		assert.Equal(t, fixed.Add(tc.access), access.ExpiresAt, tc.role)

		refresh, err := svc.IssueRefreshToken(u)
		require.NoError(t, err)
		assert.Equal(t, fixed.Add(tc.refresh), refresh.ExpiresAt, tc.role)
	}
}

func TestJWTService_ParseRejects(t *testing.T) {
	cfg := testutil.TestConfig()
	svc := NewJWTService(cfg, zap.NewNop())
	u := jwtTestUser(common.RoleUser)

	t.Run("expired", func(t *testing.T) {
		past := NewJWTService(cfg, zap.NewNop())
		past.now = func() time.Time { return time.Now().Add(-2 * cfg.JWTUserAccessTokenExpiry) }
		tok, err := past.IssueAccessToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(tok.Raw)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := testutil.TestConfig()
		other.JWTSecretKey = "another-secret"
		tok, err := NewJWTService(other, zap.NewNop()).IssueAccessToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(tok.Raw)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := testutil.TestConfig()
		other.JWTIssuer = "someone-else"
		tok, err := NewJWTService(other, zap.NewNop()).IssueAccessToken(u)
		require.NoError(t, err)
		_, err = svc.ParseToken(tok.Raw)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Type: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   u.ID.String(),
				Issuer:    cfg.JWTIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ParseToken(raw)
		assert.Error(t, err)
	})

	t.Run("missing jti", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			Type: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   u.ID.String(),
				Issuer:    cfg.JWTIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(cfg.JWTSecretKey))
		require.NoError(t, err)
		_, err = svc.ParseToken(raw)
		assert.ErrorContains(t, err, "missing jti")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseToken("not.a.jwt")
		assert.Error(t, err)
	})
}
