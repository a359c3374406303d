package auth

import (
	"context"
	"errors"
	"testing"

	"auth_api/internal/common"
	"auth_api/internal/testutil"
	"auth_api/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGoogle struct {
	profile *user.OAuthProfile
	err     error
}

func (f *fakeGoogle) Exchange(_ context.Context, _ string) (*user.OAuthProfile, error) {
	return f.profile, f.err
}

type serviceFixture struct {
	svc    Service
	users  *user.ServiceImplementation
	google *fakeGoogle
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testutil.NewMigratedSQLite(t)
	cfg := testutil.TestConfig()
	users := user.NewService(user.NewGORMRepository(db), zap.NewNop())
	google := &fakeGoogle{}
	svc := NewService(users, NewJWTService(cfg, zap.NewNop()), NewGormTokenStore(db, cfg, zap.NewNop()), google, zap.NewNop())
	return &serviceFixture{svc: svc, users: users, google: google}
}

func (f *serviceFixture) createUser(t *testing.T, username, password string) *user.User {
	t.Helper()
	email := username + "@example.com"
	u, _, err := f.users.Upsert(context.Background(), uuid.New(), user.UpsertUserRequest{
		Username: &username, Email: &email, Password: &password,
	})
	require.NoError(t, err)
	return u
}

func TestService_LoginAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	u := f.createUser(t, "walt", "pw")

	_, err := f.svc.Login(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.svc.Login(ctx, "walt", "bad")
	assert.ErrorIs(t, err, user.ErrBadCredentials)

	pair, err := f.svc.Login(ctx, "walt", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := f.svc.VerifyToken(ctx, pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())

	_, err = f.svc.VerifyToken(ctx, pair.AccessToken, TokenTypeRefresh)
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Only refresh tokens are allowed", apiErr.Details)

	_, err = f.svc.VerifyToken(ctx, pair.RefreshToken, TokenTypeRefresh)
	assert.NoError(t, err)
}

func TestService_RefreshAndRevoke(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.createUser(t, "xena", "pw")

	pair, err := f.svc.Login(ctx, "xena", "pw")
	require.NoError(t, err)
	refreshClaims, err := f.svc.VerifyToken(ctx, pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, refreshClaims)
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)
	newAccess, err := f.svc.VerifyToken(ctx, refreshed.AccessToken, TokenTypeAccess)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, newAccess))
	_, err = f.svc.VerifyToken(ctx, refreshed.AccessToken, TokenTypeAccess)
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Token has been revoked", apiErr.Details)

	// The original access token is independent.
	_, err = f.svc.VerifyToken(ctx, pair.AccessToken, TokenTypeAccess)
	assert.NoError(t, err)
}

func TestService_RefreshRejectsDisabledOrDeletedUser(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	u := f.createUser(t, "yuri", "pw")

	pair, err := f.svc.Login(ctx, "yuri", "pw")
	require.NoError(t, err)
	claims, err := f.svc.VerifyToken(ctx, pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)

	inactive := false
	_, _, err = f.users.Upsert(ctx, u.ExternalUUID, user.UpsertUserRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, claims)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	require.NoError(t, f.users.Delete(ctx, u.ExternalUUID))
	_, err = f.svc.Refresh(ctx, claims)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestService_LoginWithGoogle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.LoginWithGoogle(ctx, "")
	assert.ErrorIs(t, err, ErrMissingAuthorizationCode)

	f.google.err = errors.New("invalid_grant")
	_, err = f.svc.LoginWithGoogle(ctx, "code")
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "invalid_grant", apiErr.Details)

	f.google.err = nil
	f.google.profile = &user.OAuthProfile{
		Provider: user.ProviderGoogle, ProviderID: "g-77", Email: "zoe@example.com", EmailVerified: true, Name: "Zoe",
	}
	pair, err := f.svc.LoginWithGoogle(ctx, "code")
	require.NoError(t, err)
	claims, err := f.svc.VerifyToken(ctx, pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, common.RoleUser, claims.Role)
}
