// File: internal/user/model.go
package user

import (
	"strings"
	"time"

	"auth_api/internal/common"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	ProviderInternal = "internal"
	ProviderGoogle   = "google"
)

// User represents the user model in the database.
// ID is internal (JWT subject); ExternalUUID is what clients see and address.
type User struct {
	common.BaseModel
	ExternalUUID uuid.UUID `gorm:"column:external_uuid;not null;uniqueIndex"`
	Username     string    `gorm:"type:varchar(80);not null;uniqueIndex"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash *string   `gorm:"type:varchar(255)"` // NULL for accounts created through Google
	Role         string    `gorm:"type:varchar(20);not null"`
	Resources    []string  `gorm:"serializer:json;not null"`
	Active       bool      `gorm:"not null"`
	AuthProvider string    `gorm:"type:varchar(20);not null"`
	ProviderID   *string   `gorm:"type:varchar(255)"`
	LastLoginAt  *time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// BeforeSave keeps the resources column a JSON array.
func (u *User) BeforeSave(_ *gorm.DB) error {
	if u.Resources == nil {
		u.Resources = []string{}
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == common.RoleAdmin
}

// NormalizeUsername applies NFKC and trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(norm.NFKC.String(username))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- DTOs (Data Transfer Objects) for API requests/responses ---

// UpsertUserRequest is the body of PUT /users/:user_uuid.
// Every field is optional on update; username, email and password are required on create.
type UpsertUserRequest struct {
	Username  *string   `json:"username" binding:"omitempty,min=1,max=80"`
	Email     *string   `json:"email" binding:"omitempty,email,max=255"`
	Password  *string   `json:"password" binding:"omitempty,min=1,bcryptpw"`
	Role      *string   `json:"role" binding:"omitempty,role"`
	Resources *[]string `json:"resources"`
	Active    *bool     `json:"active"`
}

// ChangePasswordRequest is the body of PUT /users/:user_uuid/password.
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,bcryptpw"`
}

// UserResponse defines the structure for user data sent in API responses.
type UserResponse struct {
	UUID         uuid.UUID  `json:"uuid"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Resources    []string   `json:"resources"`
	Active       bool       `json:"active"`
	AuthProvider string     `json:"auth_provider"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// PublicResponse is what any authenticated caller may learn about another user.
type PublicResponse struct {
	UUID     uuid.UUID `json:"uuid"`
	Username string    `json:"username"`
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(u *User) UserResponse {
	resources := u.Resources
	if resources == nil {
		resources = []string{}
	}
	return UserResponse{
		UUID:         u.ExternalUUID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         u.Role,
		Resources:    resources,
		Active:       u.Active,
		AuthProvider: u.AuthProvider,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func ToUserResponses(users []*User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u))
	}
	return out
}

func ToPublicResponse(u *User) PublicResponse {
	return PublicResponse{UUID: u.ExternalUUID, Username: u.Username}
}
