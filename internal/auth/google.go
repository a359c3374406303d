// File: internal/auth/google.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"auth_api/internal/config"
	"auth_api/internal/user"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ErrGoogleNotConfigured is returned when GOOGLE_CLIENT_ID is unset.
var ErrGoogleNotConfigured = errors.New("google login is not configured")

// GoogleProvider turns an authorization code into a verified Google profile.
type GoogleProvider interface {
	Exchange(ctx context.Context, code string) (*user.OAuthProfile, error)
}

type googleProvider struct {
	oauthCfg   *oauth2.Config
	apiOptions []option.ClientOption
	logger     *zap.Logger
}

// NewGoogleProvider builds the provider from GOOGLE_* settings. The default redirect URI
// "postmessage" matches codes obtained by a browser popup.
func NewGoogleProvider(cfg *config.Config, logger *zap.Logger) GoogleProvider {
	return newGoogleProvider(&oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, nil, logger)
}

func newGoogleProvider(oauthCfg *oauth2.Config, apiOptions []option.ClientOption, logger *zap.Logger) *googleProvider {
	return &googleProvider{oauthCfg: oauthCfg, apiOptions: apiOptions, logger: logger.Named("GoogleProvider")}
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (*user.OAuthProfile, error) {
	if p.oauthCfg.ClientID == "" {
		return nil, ErrGoogleNotConfigured
	}

	token, err := p.oauthCfg.Exchange(ctx, code)
	if err != nil {
		p.logger.Warn("Google code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(p.oauthCfg.Client(ctx, token))}, p.apiOptions...)
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google oauth2 client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		p.logger.Warn("Fetching Google user info failed", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch google user info: %w", err)
	}

	profile := &user.OAuthProfile{
		Provider:      user.ProviderGoogle,
		ProviderID:    info.Id,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		Name:          info.Name,
	}
	p.logger.Debug("Fetched Google profile", zap.String("providerID", profile.ProviderID), zap.String("email", profile.Email))
	return profile, nil
}
