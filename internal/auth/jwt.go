// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/config"
	"auth_api/internal/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the JWT claims of both token types. Role, UUID and Resources are only set on access tokens.
type Claims struct {
	Type      string   `json:"type"`
	Role      string   `json:"role,omitempty"`
	UUID      string   `json:"uuid,omitempty"`
	Resources []string `json:"resources,omitempty"`
	jwt.RegisteredClaims
}

// UserID is the internal user id carried in the subject.
func (c *Claims) UserID() uuid.UUID {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// UserUUID is the external user id; uuid.Nil on refresh tokens.
func (c *Claims) UserUUID() uuid.UUID {
	id, err := uuid.Parse(c.UUID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// IssuedToken is a signed token plus what the token store records about it.
type IssuedToken struct {
	Raw       string
	JTI       string
	Type      string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// TokenService signs and parses JWTs.
type TokenService interface {
	IssueAccessToken(u *user.User) (*IssuedToken, error)
	IssueRefreshToken(u *user.User) (*IssuedToken, error)
	ParseToken(raw string) (*Claims, error)
}

type JWTService struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg *config.Config, logger *zap.Logger) *JWTService {
	return &JWTService{cfg: cfg, logger: logger.Named("JWTService"), now: time.Now}
}

var _ TokenService = (*JWTService)(nil)

// AccessLifetime returns the access token lifetime for a role; tech accounts get their own.
func (s *JWTService) AccessLifetime(role string) time.Duration {
	if role == common.RoleTech {
		return s.cfg.JWTTechAccessTokenExpiry
	}
	return s.cfg.JWTUserAccessTokenExpiry
}

// RefreshLifetime returns the refresh token lifetime for a role.
func (s *JWTService) RefreshLifetime(role string) time.Duration {
	if role == common.RoleTech {
		return s.cfg.JWTTechRefreshTokenExpiry
	}
	return s.cfg.JWTUserRefreshTokenExpiry
}

func (s *JWTService) IssueAccessToken(u *user.User) (*IssuedToken, error) {
	resources := u.Resources
	if resources == nil {
		resources = []string{}
	}
	claims := &Claims{
		Type:      TokenTypeAccess,
		Role:      u.Role,
		UUID:      u.ExternalUUID.String(),
		Resources: resources,
	}
	return s.sign(u, claims, s.AccessLifetime(u.Role))
}

func (s *JWTService) IssueRefreshToken(u *user.User) (*IssuedToken, error) {
	return s.sign(u, &Claims{Type: TokenTypeRefresh}, s.RefreshLifetime(u.Role))
}

func (s *JWTService) sign(u *user.User, claims *Claims, lifetime time.Duration) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(lifetime)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.ID.String(),
		Issuer:    s.cfg.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		s.logger.Error("Failed to sign token", zap.String("type", claims.Type), zap.Error(err))
		return nil, fmt.Errorf("could not sign %s token: %w", claims.Type, err)
	}
	return &IssuedToken{
		Raw:       tokenString,
		JTI:       claims.ID,
		Type:      claims.Type,
		UserID:    u.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseToken verifies signature, issuer and expiry, and that the token carries the claims every token must have.
func (s *JWTService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecretKey), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("invalid token: missing jti")
	}
	if claims.UserID() == uuid.Nil {
		return nil, errors.New("invalid token: malformed subject")
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, fmt.Errorf("invalid token: unknown type %q", claims.Type)
	}
	return claims, nil
}
