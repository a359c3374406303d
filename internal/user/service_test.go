package user

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/platform/crypto"
	"auth_api/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func newSQLiteService(t *testing.T) *ServiceImplementation {
	t.Helper()
	return NewService(NewGORMRepository(testutil.NewMigratedSQLite(t)), zap.NewNop())
}

func createUser(t *testing.T, svc *ServiceImplementation, username, email, password string) *User {
	t.Helper()
	u, created, err := svc.Upsert(context.Background(), uuid.New(), UpsertUserRequest{
		Username: strPtr(username),
		Email:    strPtr(email),
		Password: strPtr(password),
	})
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func TestUserService_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	id := uuid.New()

	created, wasCreated, err := svc.Upsert(ctx, id, UpsertUserRequest{
		Username: strPtr("erin"),
		Email:    strPtr("erin@example.com"),
		Password: strPtr("s3cret"),
	})
	require.NoError(t, err)
	assert.True(t, wasCreated)
	assert.Equal(t, id, created.ExternalUUID)
	assert.Equal(t, common.RoleUser, created.Role)
	assert.True(t, created.Active)
	assert.Equal(t, ProviderInternal, created.AuthProvider)

	resources := []string{"dashboards"}
	updated, wasCreated, err := svc.Upsert(ctx, id, UpsertUserRequest{
		Role:      strPtr(common.RoleTech),
		Resources: &resources,
	})
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "erin", updated.Username)
	assert.Equal(t, common.RoleTech, updated.Role)
	assert.Equal(t, resources, updated.Resources)

	// The password survives a partial update.
	_, err = svc.Authenticate(ctx, "erin", "s3cret")
	assert.NoError(t, err)
}

func TestUserService_UpsertCreateRequiresFields(t *testing.T) {
	svc := newSQLiteService(t)

	_, _, err := svc.Upsert(context.Background(), uuid.New(), UpsertUserRequest{Username: strPtr("frank")})
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 422, apiErr.StatusCode)
	details, ok := apiErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "Email")
	assert.Contains(t, details, "Password")
	assert.NotContains(t, details, "Username")
}

func TestUserService_UpsertConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	createUser(t, svc, "gina", "gina@example.com", "pw")
	other := createUser(t, svc, "hank", "hank@example.com", "pw")

	_, _, err := svc.Upsert(ctx, uuid.New(), UpsertUserRequest{
		Username: strPtr("gina"), Email: strPtr("new@example.com"), Password: strPtr("pw"),
	})
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Username already exists", apiErr.Details)

	_, _, err = svc.Upsert(ctx, other.ExternalUUID, UpsertUserRequest{Email: strPtr("GINA@example.com")})
	apiErr, ok = common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Email already exists", apiErr.Details)

	// Keeping one's own username is not a conflict.
	_, _, err = svc.Upsert(ctx, other.ExternalUUID, UpsertUserRequest{Username: strPtr("hank")})
	assert.NoError(t, err)
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	u := createUser(t, svc, "ivan", "ivan@example.com", "correct horse")

	got, err := svc.Authenticate(ctx, "ivan", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, fixed.Equal(*got.LastLoginAt))

	_, err = svc.Authenticate(ctx, "ivan", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, _, err = svc.Upsert(ctx, u.ExternalUUID, UpsertUserRequest{Active: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ivan", "correct horse")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func boolPtr(b bool) *bool { return &b }

func TestUserService_ChangePasswordAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	u := createUser(t, svc, "judy", "judy@example.com", "old")

	require.NoError(t, svc.ChangePassword(ctx, u.ExternalUUID, "new"))
	_, err := svc.Authenticate(ctx, "judy", "old")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "judy", "new")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, uuid.New(), "x"), common.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, u.ExternalUUID))
	_, err = svc.GetByUUID(ctx, u.ExternalUUID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, u.ExternalUUID), common.ErrNotFound)
}

func TestUserService_PublicInfo(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	a := createUser(t, svc, "kim", "kim@example.com", "pw")
	b := createUser(t, svc, "lee", "lee@example.com", "pw")

	users, err := svc.PublicInfo(ctx, []uuid.UUID{b.ExternalUUID, a.ExternalUUID, b.ExternalUUID})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "lee", users[0].Username)
	assert.Equal(t, "kim", users[1].Username)

	_, err = svc.PublicInfo(ctx, []uuid.UUID{a.ExternalUUID, uuid.New()})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUserService_FindOrCreateOAuthUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new user", func(t *testing.T) {
		svc := newSQLiteService(t)
		u, created, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
			Provider: ProviderGoogle, ProviderID: "g-1", Email: "New.Person@Example.com", EmailVerified: true, Name: "New Person",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "New Person", u.Username)
		assert.Equal(t, "new.person@example.com", u.Email)
		assert.Nil(t, u.PasswordHash)
		assert.Equal(t, ProviderGoogle, u.AuthProvider)

		again, created, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{Provider: ProviderGoogle, ProviderID: "g-1", Email: "changed@example.com"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, u.ID, again.ID)
	})

	t.Run("username collision gets suffix", func(t *testing.T) {
		svc := newSQLiteService(t)
		createUser(t, svc, "mallory", "m1@example.com", "pw")
		u, created, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
			Provider: ProviderGoogle, ProviderID: "g-2", Email: "mallory@example.org", EmailVerified: true,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, "mallory", u.Username)
		assert.Contains(t, u.Username, "mallory_")
	})

	t.Run("links verified email", func(t *testing.T) {
		svc := newSQLiteService(t)
		existing := createUser(t, svc, "nina", "nina@example.com", "pw")
		u, created, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
			Provider: ProviderGoogle, ProviderID: "g-3", Email: "nina@example.com", EmailVerified: true,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existing.ID, u.ID)
		require.NotNil(t, u.ProviderID)
		assert.Equal(t, "g-3", *u.ProviderID)

		// The password still works after linking.
		_, err = svc.Authenticate(ctx, "nina", "pw")
		assert.NoError(t, err)
	})

	t.Run("refuses unverified email", func(t *testing.T) {
		svc := newSQLiteService(t)
		createUser(t, svc, "oscar", "oscar@example.com", "pw")
		_, _, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
			Provider: ProviderGoogle, ProviderID: "g-4", Email: "oscar@example.com",
		})
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("missing email", func(t *testing.T) {
		svc := newSQLiteService(t)
		_, _, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{Provider: ProviderGoogle, ProviderID: "g-5"})
		assert.ErrorIs(t, err, common.ErrBadRequest)
	})
}

func TestUserService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)

	admin, created, err := svc.EnsureAdmin(ctx, "admin", "admin@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin())

	again, created, err := svc.EnsureAdmin(ctx, "admin", "admin@example.com", "different")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	// The existing password is left alone.
	_, err = svc.Authenticate(ctx, "admin", "pw")
	assert.NoError(t, err)
}

// mockRepository covers failure paths a real database does not produce on demand.
type mockRepository struct {
	mock.Mock
	Repository
}

func (m *mockRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if u, ok := args.Get(0).(*User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func TestUserService_AuthenticateRepositoryFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("FindByUsername", mock.Anything, "pat").Return(nil, errors.New("connection reset"))
	svc := NewService(repo, zap.NewNop())

	_, err := svc.Authenticate(context.Background(), "pat", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadCredentials)
	assert.Contains(t, err.Error(), "connection reset")
	repo.AssertExpectations(t)
}

func TestUserService_LastLoginFailureDoesNotBlockLogin(t *testing.T) {
	svc := newSQLiteService(t)
	u := createUser(t, svc, "quinn", "quinn@example.com", "pw")

	repo := &mockRepository{}
	repo.On("FindByUsername", mock.Anything, "quinn").Return(u, nil)
	repo.On("TouchLastLogin", mock.Anything, u.ID, mock.AnythingOfType("time.Time")).Return(errors.New("read only"))
	failing := NewService(repo, zap.NewNop())

	got, err := failing.Authenticate(context.Background(), "quinn", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	repo.AssertExpectations(t)
}

func TestUserService_PasswordOverBcryptLimit(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	tooLong := strings.Repeat("é", 40) // 40 characters, 80 bytes

	_, _, err := svc.Upsert(ctx, uuid.New(), UpsertUserRequest{
		Username: strPtr("rosa"),
		Email:    strPtr("rosa@example.com"),
		Password: strPtr(tooLong),
	})
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Details, "Password")

	u := createUser(t, svc, "rosa", "rosa@example.com", strings.Repeat("é", 36))
	err = svc.ChangePassword(ctx, u.ExternalUUID, tooLong)
	apiErr, ok = common.IsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Details, "NewPassword")

	_, _, err = svc.EnsureAdmin(ctx, "root", "root@example.com", tooLong)
	apiErr, ok = common.IsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestUserService_AuthenticateAlwaysChecksAPassword(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)
	u := createUser(t, svc, "sam", "sam@example.com", "pw")

	var hashes []string
	svc.checkPassword = func(hash, password string) error {
		hashes = append(hashes, hash)
		return crypto.CheckPassword(hash, password)
	}

	_, err := svc.Authenticate(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Authenticate(ctx, "sam", "pw")
	assert.NoError(t, err)

	require.Len(t, hashes, 2)
	assert.Equal(t, crypto.DummyHash(), hashes[0])
	assert.Equal(t, *u.PasswordHash, hashes[1])
}
