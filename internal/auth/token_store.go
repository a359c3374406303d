// File: internal/auth/token_store.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth_api/internal/common"
	"auth_api/internal/config"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenRecord is a row of token_blocklist. Every issued token gets one; a token without a row is treated as revoked.
type TokenRecord struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey"`
	JTI       string    `gorm:"column:jti;type:varchar(36);not null;uniqueIndex"`
	TokenType string    `gorm:"column:token_type;type:varchar(10);not null"`
	UserID    uuid.UUID `gorm:"column:user_id;not null;index"`
	Revoked   bool      `gorm:"column:revoked;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (TokenRecord) TableName() string {
	return "token_blocklist"
}

func (r *TokenRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TokenStore records issued tokens and answers whether one has been revoked.
type TokenStore interface {
	Add(ctx context.Context, token *IssuedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// GormTokenStore keeps token records in the database and caches revoked jtis in memory.
// Only revocation is cached: a token is reported live only after the database says so,
// so a row removed with its user stops authenticating at once.
type GormTokenStore struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger *zap.Logger
}

var _ TokenStore = (*GormTokenStore)(nil)

// NewGormTokenStore creates the store. A zero TOKEN_REVOCATION_CACHE_SECONDS disables the cache.
func NewGormTokenStore(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *GormTokenStore {
	s := &GormTokenStore{db: db, logger: logger.Named("TokenStore")}
	if cfg.TokenRevocationCacheTTL > 0 {
		s.cache = cache.New(cfg.TokenRevocationCacheTTL, 2*cfg.TokenRevocationCacheTTL)
	}
	return s
}

// Add records a freshly issued token as not revoked.
func (s *GormTokenStore) Add(ctx context.Context, token *IssuedToken) error {
	record := &TokenRecord{
		JTI:       token.JTI,
		TokenType: token.Type,
		UserID:    token.UserID,
		Revoked:   false,
		ExpiresAt: token.ExpiresAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to record %s token: %w", token.Type, err)
	}
	return nil
}

// IsRevoked reports true for revoked tokens and for tokens this service never recorded.
func (s *GormTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.cachedRevoked(jti) {
		return true, nil
	}

	var record TokenRecord
	err := s.db.WithContext(ctx).Select("revoked").Where("jti = ?", jti).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.cacheRevoked(jti)
			return true, nil
		}
		return false, fmt.Errorf("failed to look up token: %w", err)
	}
	if record.Revoked {
		s.cacheRevoked(jti)
	}
	return record.Revoked, nil
}

// Revoke marks the token revoked. The jti must belong to userID.
func (s *GormTokenStore) Revoke(ctx context.Context, jti string, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&TokenRecord{}).
		Where("jti = ? AND user_id = ?", jti, userID).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails(fmt.Sprintf("Could not find the token %s", jti))
	}
	s.cacheRevoked(jti)
	s.logger.Info("Token revoked", zap.String("jti", jti), zap.String("userID", userID.String()))
	return nil
}

// DeleteExpired removes records whose tokens expired before the given time.
func (s *GormTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&TokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormTokenStore) cachedRevoked(jti string) bool {
	if s.cache == nil {
		return false
	}
	_, found := s.cache.Get(jti)
	return found
}

func (s *GormTokenStore) cacheRevoked(jti string) {
	if s.cache != nil {
		s.cache.SetDefault(jti, true)
	}
}
