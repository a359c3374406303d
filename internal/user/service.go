package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/platform/crypto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBadCredentials is returned for unknown users, wrong passwords and disabled accounts alike.
var ErrBadCredentials = common.NewAPIError(http.StatusBadRequest, "BAD_CREDENTIALS", "Bad credentials")

// OAuthProfile is the identity an external provider vouches for.
type OAuthProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	Name          string
}

// Service defines the interface for user business logic.
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUUID(ctx context.Context, externalUUID uuid.UUID) (*User, error)
	Upsert(ctx context.Context, externalUUID uuid.UUID, req UpsertUserRequest) (*User, bool, error)
	Delete(ctx context.Context, externalUUID uuid.UUID) error
	ChangePassword(ctx context.Context, externalUUID uuid.UUID, newPassword string) error
	PublicInfo(ctx context.Context, externalUUIDs []uuid.UUID) ([]*User, error)
	List(ctx context.Context, page common.PaginationQuery) ([]*User, int64, error)
	FindOrCreateOAuthUser(ctx context.Context, profile OAuthProfile) (*User, bool, error)
	EnsureAdmin(ctx context.Context, username, email, password string) (*User, bool, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo          Repository
	logger        *zap.Logger
	now           func() time.Time
	checkPassword func(hash, password string) error
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:          repo,
		logger:        logger.Named("UserService"),
		now:           func() time.Time { return time.Now().UTC() },
		checkPassword: crypto.CheckPassword,
	}
}

// Authenticate checks internal credentials and records the login time.
func (s *ServiceImplementation) Authenticate(ctx context.Context, username, password string) (*User, error) {
	dbUser, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("Login attempt for unknown user", zap.String("username", username))
			_ = s.checkPassword(crypto.DummyHash(), password)
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if dbUser.PasswordHash == nil {
		s.logger.Warn("Password login attempted on an account without a password", zap.String("userID", dbUser.ID.String()))
		_ = s.checkPassword(crypto.DummyHash(), password)
		return nil, ErrBadCredentials
	}
	if err := s.checkPassword(*dbUser.PasswordHash, password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.Error("Password check failed", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		}
		return nil, ErrBadCredentials
	}
	if !dbUser.Active {
		s.logger.Warn("Login attempt on inactive account", zap.String("userID", dbUser.ID.String()))
		return nil, ErrBadCredentials
	}

	s.touchLastLogin(ctx, dbUser)
	return dbUser, nil
}

func (s *ServiceImplementation) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ServiceImplementation) GetByUUID(ctx context.Context, externalUUID uuid.UUID) (*User, error) {
	return s.repo.FindByExternalUUID(ctx, externalUUID)
}

// Upsert creates the user addressed by externalUUID, or applies a partial update when it exists.
// The bool result reports whether a user was created.
func (s *ServiceImplementation) Upsert(ctx context.Context, externalUUID uuid.UUID, req UpsertUserRequest) (*User, bool, error) {
	existing, err := s.repo.FindByExternalUUID(ctx, externalUUID)
	switch {
	case err == nil:
		updated, err := s.update(ctx, existing, req)
		return updated, false, err
	case errors.Is(err, common.ErrNotFound):
		created, err := s.create(ctx, externalUUID, req)
		return created, err == nil, err
	default:
		return nil, false, err
	}
}

func (s *ServiceImplementation) create(ctx context.Context, externalUUID uuid.UUID, req UpsertUserRequest) (*User, error) {
	missing := map[string]string{}
	if req.Username == nil || NormalizeUsername(*req.Username) == "" {
		missing["Username"] = "The username field is required."
	}
	if req.Email == nil || NormalizeEmail(*req.Email) == "" {
		missing["Email"] = "The email field is required."
	}
	if req.Password == nil || *req.Password == "" {
		missing["Password"] = "The password field is required."
	}
	if len(missing) > 0 {
		return nil, common.NewValidationAPIError(missing)
	}

	if err := s.checkAvailable(ctx, req.Username, req.Email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := hashPassword("Password", *req.Password)
	if err != nil {
		return nil, err
	}

	newUser := &User{
		ExternalUUID: externalUUID,
		Username:     *req.Username,
		Email:        *req.Email,
		PasswordHash: &hash,
		Role:         common.RoleUser,
		Resources:    []string{},
		Active:       true,
		AuthProvider: ProviderInternal,
	}
	if req.Role != nil {
		newUser.Role = *req.Role
	}
	if req.Resources != nil {
		newUser.Resources = *req.Resources
	}
	if req.Active != nil {
		newUser.Active = *req.Active
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err), zap.String("uuid", externalUUID.String()))
		return nil, err
	}
	s.logger.Info("User created", zap.String("userID", newUser.ID.String()), zap.String("uuid", externalUUID.String()))
	return newUser, nil
}

func (s *ServiceImplementation) update(ctx context.Context, dbUser *User, req UpsertUserRequest) (*User, error) {
	if err := s.checkAvailable(ctx, req.Username, req.Email, dbUser.ID); err != nil {
		return nil, err
	}

	if req.Username != nil {
		if NormalizeUsername(*req.Username) == "" {
			return nil, common.NewValidationAPIError(map[string]string{"Username": "The username field may not be blank."})
		}
		dbUser.Username = *req.Username
	}
	if req.Email != nil {
		dbUser.Email = *req.Email
	}
	if req.Password != nil {
		hash, err := hashPassword("Password", *req.Password)
		if err != nil {
			return nil, err
		}
		dbUser.PasswordHash = &hash
	}
	if req.Role != nil {
		dbUser.Role = *req.Role
	}
	if req.Resources != nil {
		dbUser.Resources = *req.Resources
	}
	if req.Active != nil {
		dbUser.Active = *req.Active
	}

	if err := s.repo.Update(ctx, dbUser); err != nil {
		s.logger.Error("Failed to update user", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return nil, err
	}
	s.logger.Info("User updated", zap.String("userID", dbUser.ID.String()))
	return dbUser, nil
}

// checkAvailable rejects a username or email already held by someone other than excludeID.
func (s *ServiceImplementation) checkAvailable(ctx context.Context, username, email *string, excludeID uuid.UUID) error {
	if username != nil {
		taken, err := s.repo.IsUsernameTaken(ctx, *username, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return common.ErrConflict.WithDetails("Username already exists")
		}
	}
	if email != nil {
		taken, err := s.repo.IsEmailTaken(ctx, *email, excludeID)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return common.ErrConflict.WithDetails("Email already exists")
		}
	}
	return nil
}

func (s *ServiceImplementation) Delete(ctx context.Context, externalUUID uuid.UUID) error {
	dbUser, err := s.repo.FindByExternalUUID(ctx, externalUUID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, dbUser.ID); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.String("userID", dbUser.ID.String()))
	return nil
}

func (s *ServiceImplementation) ChangePassword(ctx context.Context, externalUUID uuid.UUID, newPassword string) error {
	dbUser, err := s.repo.FindByExternalUUID(ctx, externalUUID)
	if err != nil {
		return err
	}
	hash, err := hashPassword("NewPassword", newPassword)
	if err != nil {
		return err
	}
	dbUser.PasswordHash = &hash
	if err := s.repo.Update(ctx, dbUser); err != nil {
		return err
	}
	s.logger.Info("Password changed", zap.String("userID", dbUser.ID.String()))
	return nil
}

// PublicInfo resolves every requested uuid or fails with 404. Duplicates are counted once
// and the result follows the order of first appearance.
func (s *ServiceImplementation) PublicInfo(ctx context.Context, externalUUIDs []uuid.UUID) ([]*User, error) {
	seen := make(map[uuid.UUID]struct{}, len(externalUUIDs))
	unique := make([]uuid.UUID, 0, len(externalUUIDs))
	for _, id := range externalUUIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := s.repo.FindByExternalUUIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(users) != len(unique) {
		return nil, common.ErrNotFound.WithDetails("One or more users do not exist.")
	}

	byUUID := make(map[uuid.UUID]*User, len(users))
	for _, u := range users {
		byUUID[u.ExternalUUID] = u
	}
	ordered := make([]*User, 0, len(unique))
	for _, id := range unique {
		ordered = append(ordered, byUUID[id])
	}
	return ordered, nil
}

func (s *ServiceImplementation) List(ctx context.Context, page common.PaginationQuery) ([]*User, int64, error) {
	return s.repo.List(ctx, page.Offset(), page.Limit())
}

// FindOrCreateOAuthUser resolves an external identity to a local user: by provider id first,
// then by verified email (linking the identity), otherwise by creating a new account.
// The bool result reports whether a user was created.
func (s *ServiceImplementation) FindOrCreateOAuthUser(ctx context.Context, profile OAuthProfile) (*User, bool, error) {
	s.logger.Info("Processing OAuth user profile",
		zap.String("provider", profile.Provider),
		zap.String("providerID", profile.ProviderID),
		zap.String("email", profile.Email),
	)
	if profile.ProviderID == "" {
		return nil, false, common.ErrBadRequest.WithDetails("Provider did not return an account id.")
	}

	dbUser, err := s.repo.FindByProvider(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		if !dbUser.Active {
			return nil, false, common.ErrForbidden.WithDetails("This account is disabled.")
		}
		s.touchLastLogin(ctx, dbUser)
		return dbUser, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, false, common.ErrBadRequest.WithDetails("The provider account has no email address.")
	}

	byEmail, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.linkOAuthIdentity(ctx, byEmail, profile)
	case !errors.Is(err, common.ErrNotFound):
		return nil, false, err
	}

	s.logger.Info("Creating new user from OAuth profile", zap.String("provider", profile.Provider), zap.String("email", email))

	username, err := s.availableUsername(ctx, profile)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	providerID := profile.ProviderID
	newUser := &User{
		ExternalUUID: uuid.New(),
		Username:     username,
		Email:        email,
		Role:         common.RoleUser,
		Resources:    []string{},
		Active:       true,
		AuthProvider: profile.Provider,
		ProviderID:   &providerID,
		LastLoginAt:  &now,
	}
	if err := s.repo.Create(ctx, newUser); err != nil {
		s.logger.Error("Failed to create new OAuth user", zap.Error(err), zap.String("email", email))
		return nil, false, err
	}
	s.logger.Info("New OAuth user created", zap.String("userID", newUser.ID.String()))
	return newUser, true, nil
}

func (s *ServiceImplementation) linkOAuthIdentity(ctx context.Context, dbUser *User, profile OAuthProfile) (*User, bool, error) {
	if !profile.EmailVerified {
		s.logger.Warn("Refusing to link OAuth identity with unverified email", zap.String("userID", dbUser.ID.String()))
		return nil, false, common.ErrConflict.WithDetails("An account with this email already exists.")
	}
	if dbUser.ProviderID != nil && *dbUser.ProviderID != profile.ProviderID {
		s.logger.Warn("User found by email but already linked to another external account",
			zap.String("userID", dbUser.ID.String()),
			zap.String("existingProvider", dbUser.AuthProvider),
			zap.String("newProvider", profile.Provider))
		return nil, false, common.ErrConflict.WithDetails(
			fmt.Sprintf("This email is already linked to a different %s account.", dbUser.AuthProvider))
	}
	if !dbUser.Active {
		return nil, false, common.ErrForbidden.WithDetails("This account is disabled.")
	}

	providerID := profile.ProviderID
	now := s.now()
	dbUser.AuthProvider = profile.Provider
	dbUser.ProviderID = &providerID
	dbUser.LastLoginAt = &now
	if err := s.repo.Update(ctx, dbUser); err != nil {
		s.logger.Error("Failed to link OAuth account", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return nil, false, err
	}
	s.logger.Info("OAuth identity linked to existing user", zap.String("userID", dbUser.ID.String()))
	return dbUser, false, nil
}

// availableUsername derives a username from the profile, suffixing it until it is free.
func (s *ServiceImplementation) availableUsername(ctx context.Context, profile OAuthProfile) (string, error) {
	base := NormalizeUsername(profile.Name)
	if base == "" {
		base, _, _ = strings.Cut(NormalizeEmail(profile.Email), "@")
	}
	if base == "" {
		base = "user"
	}
	if runes := []rune(base); len(runes) > 60 {
		base = string(runes[:60])
	}
	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		taken, err := s.repo.IsUsernameTaken(ctx, candidate, uuid.Nil)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return "", common.ErrConflict.WithDetails("Could not derive a free username.")
}

// EnsureAdmin creates an admin account unless the username already exists. It never modifies an existing user.
func (s *ServiceImplementation) EnsureAdmin(ctx context.Context, username, email, password string) (*User, bool, error) {
	existing, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	if taken, err := s.repo.IsEmailTaken(ctx, email, uuid.Nil); err != nil {
		return nil, false, err
	} else if taken {
		return nil, false, common.ErrConflict.WithDetails("Email already exists")
	}

	hash, err := hashPassword("Password", password)
	if err != nil {
		return nil, false, err
	}
	admin := &User{
		ExternalUUID: uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Role:         common.RoleAdmin,
		Resources:    []string{},
		Active:       true,
		AuthProvider: ProviderInternal,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, false, err
	}
	s.logger.Info("Admin user created", zap.String("userID", admin.ID.String()), zap.String("username", admin.Username))
	return admin, true, nil
}

// hashPassword reports an over-long password as a validation error on field.
func hashPassword(field, password string) (string, error) {
	hash, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", common.NewValidationAPIError(map[string]string{field: common.PasswordTooLongMessage(field)})
	}
	return hash, err
}

func (s *ServiceImplementation) touchLastLogin(ctx context.Context, dbUser *User) {
	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, dbUser.ID, now); err != nil {
		s.logger.Error("Failed to update last login time", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		return
	}
	dbUser.LastLoginAt = &now
}
