// File: internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"auth_api/internal/common"
	"auth_api/internal/user"

	"go.uber.org/zap"
)

var (
	ErrMissingJSON              = common.NewAPIError(http.StatusBadRequest, "MISSING_JSON", "Missing JSON in request")
	ErrMissingCredentials       = common.NewAPIError(http.StatusBadRequest, "MISSING_CREDENTIALS", "Missing username or password")
	ErrMissingAuthorizationCode = common.NewAPIError(http.StatusBadRequest, "MISSING_AUTHORIZATION_CODE", "Missing authorization code")
)

// TokenPair is returned by the login endpoints; refresh returns only the access token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Service defines the authentication use cases.
type Service interface {
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	LoginWithGoogle(ctx context.Context, code string) (*TokenPair, error)
	Refresh(ctx context.Context, claims *Claims) (*TokenPair, error)
	Revoke(ctx context.Context, claims *Claims) error
	VerifyToken(ctx context.Context, raw string, expectedType string) (*Claims, error)
}

type service struct {
	users  user.Service
	tokens TokenService
	store  TokenStore
	google GoogleProvider
	logger *zap.Logger
}

// NewService creates the authentication service.
func NewService(users user.Service, tokens TokenService, store TokenStore, google GoogleProvider, logger *zap.Logger) Service {
	return &service{
		users:  users,
		tokens: tokens,
		store:  store,
		google: google,
		logger: logger.Named("AuthService"),
	}
}

func (s *service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in", zap.String("userID", u.ID.String()))
	return pair, nil
}

func (s *service) LoginWithGoogle(ctx context.Context, code string) (*TokenPair, error) {
	if code == "" {
		return nil, ErrMissingAuthorizationCode
	}
	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails(err.Error())
	}
	u, created, err := s.users.FindOrCreateOAuthUser(ctx, *profile)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in with Google", zap.String("userID", u.ID.String()), zap.Bool("created", created))
	return pair, nil
}

// Refresh issues a new access token for the owner of a verified refresh token.
func (s *service) Refresh(ctx context.Context, claims *Claims) (*TokenPair, error) {
	u, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized.WithDetails("User associated with refresh token not found.")
		}
		return nil, err
	}
	if !u.Active {
		return nil, common.ErrUnauthorized.WithDetails("This account is disabled.")
	}

	access, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, access); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access.Raw}, nil
}

func (s *service) Revoke(ctx context.Context, claims *Claims) error {
	return s.store.Revoke(ctx, claims.ID, claims.UserID())
}

// VerifyToken parses raw, enforces the token type and rejects revoked or unknown tokens.
func (s *service) VerifyToken(ctx context.Context, raw string, expectedType string) (*Claims, error) {
	claims, err := s.tokens.ParseToken(raw)
	if err != nil {
		s.logger.Debug("Token validation failed", zap.Error(err))
		return nil, common.ErrUnauthorized.WithDetails(err.Error())
	}
	if claims.Type != expectedType {
		return nil, common.ErrUnauthorized.WithDetails(fmt.Sprintf("Only %s tokens are allowed", expectedType))
	}
	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, common.ErrUnauthorized.WithDetails("Token has been revoked")
	}
	return claims, nil
}

func (s *service) issuePair(ctx context.Context, u *user.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(u)
	if err != nil {
		return nil, err
	}
	for _, t := range []*IssuedToken{access, refresh} {
		if err := s.store.Add(ctx, t); err != nil {
			return nil, err
		}
	}
	return &TokenPair{AccessToken: access.Raw, RefreshToken: refresh.Raw}, nil
}
