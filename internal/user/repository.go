// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/platform/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByExternalUUID(ctx context.Context, externalUUID uuid.UUID) (*User, error)
	FindByExternalUUIDs(ctx context.Context, externalUUIDs []uuid.UUID) ([]*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByProvider(ctx context.Context, authProvider string, providerID string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, int64, error)
	IsUsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error)
	IsEmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	normalize(user)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// Update writes every column of an existing user.
func (r *gormRepository) Update(ctx context.Context, user *User) error {
	normalize(user)
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// Delete removes the user; issued tokens go with it through the foreign key.
func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found.")
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, "User not found with this ID.", "id = ?", id)
}

func (r *gormRepository) FindByExternalUUID(ctx context.Context, externalUUID uuid.UUID) (*User, error) {
	return r.findOne(ctx, "User not found.", "external_uuid = ?", externalUUID)
}

func (r *gormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, "User not found with this username.", "username = ?", NormalizeUsername(username))
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "User not found with this email.", "email = ?", NormalizeEmail(email))
}

// FindByProvider retrieves a user by their OAuth provider and provider-specific ID.
func (r *gormRepository) FindByProvider(ctx context.Context, authProvider string, providerID string) (*User, error) {
	return r.findOne(ctx,
		fmt.Sprintf("User not found with provider %s and ID %s.", authProvider, providerID),
		"auth_provider = ? AND provider_id = ?", authProvider, providerID,
	)
}

func (r *gormRepository) FindByExternalUUIDs(ctx context.Context, externalUUIDs []uuid.UUID) ([]*User, error) {
	var users []*User
	if len(externalUUIDs) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("external_uuid IN ?", externalUUIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to query users by uuid: %w", err)
	}
	return users, nil
}

// List returns one page of users ordered by creation time, plus the total count.
func (r *gormRepository) List(ctx context.Context, offset, limit int) ([]*User, int64, error) {
	var (
		users []*User
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (r *gormRepository) IsUsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "username = ?", NormalizeUsername(username), excludeID)
}

func (r *gormRepository) IsEmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "email = ?", NormalizeEmail(email), excludeID)
}

func (r *gormRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *gormRepository) findOne(ctx context.Context, notFound string, query string, args ...interface{}) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where(query, args...).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails(notFound)
		}
		return nil, err
	}
	return &userModel, nil
}

func (r *gormRepository) exists(ctx context.Context, query string, value string, excludeID uuid.UUID) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&User{}).Where(query, value)
	if excludeID != uuid.Nil {
		db = db.Where("id <> ?", excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalize(user *User) {
	user.Username = NormalizeUsername(user.Username)
	user.Email = NormalizeEmail(user.Email)
}

// translateWriteError maps unique violations onto 409s naming the clashing field.
func translateWriteError(err error) error {
	if !database.IsUniqueViolation(err) {
		return err
	}
	constraint := database.ConstraintName(err)
	if constraint == "" {
		constraint = err.Error()
	}
	switch {
	case strings.Contains(constraint, "username"):
		return common.ErrConflict.WithDetails("Username already exists")
	case strings.Contains(constraint, "email"):
		return common.ErrConflict.WithDetails("Email already exists")
	case strings.Contains(constraint, "provider"):
		return common.ErrConflict.WithDetails("This social account is already linked to a user.")
	}
	return common.ErrConflict.WithDetails("User already exists.")
}
