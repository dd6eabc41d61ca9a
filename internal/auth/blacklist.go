package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"phonestore-backend/internal/models"
)

// Store records revoked token ids until they expire.
type Store interface {
	Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Revoke is idempotent: revoking the same jti twice keeps the first row.
func (s *DBStore) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	row := models.BlacklistedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&row).Error
}

func (s *DBStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.BlacklistedToken{}).Where("jti = ?", jti).Count(&n).Error
	return n > 0, err
}

// Purge deletes rows whose expires_at is strictly before the cutoff.
func (s *DBStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.BlacklistedToken{})
	return res.RowsAffected, res.Error
}

const (
	cacheKeyPrefix = "auth:revoked:"
	cacheRefillTTL = 10 * time.Minute
)

// CachedStore fronts another Store with redis. Redis failures fall back to
// the wrapped store.
type CachedStore struct {
	next Store
	rdb  redis.UniversalClient
	log  *zap.Logger
	now  func() time.Time
}

func NewCachedStore(next Store, rdb redis.UniversalClient, log *zap.Logger) *CachedStore {
	return &CachedStore{next: next, rdb: rdb, log: log, now: time.Now}
}

func (s *CachedStore) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	if err := s.next.Revoke(ctx, jti, userID, expiresAt); err != nil {
		return err
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, cacheKeyPrefix+jti, "1", ttl).Err(); err != nil {
		s.log.Warn("blacklist cache write failed", zap.String("jti", jti), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.rdb.Get(ctx, cacheKeyPrefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, redis.Nil):
		s.log.Warn("blacklist cache read failed", zap.String("jti", jti), zap.Error(err))
	}

	revoked, err := s.next.IsRevoked(ctx, jti)
	if err != nil || !revoked {
		return revoked, err
	}
	if err := s.rdb.Set(ctx, cacheKeyPrefix+jti, "1", cacheRefillTTL).Err(); err != nil {
		s.log.Warn("blacklist cache refill failed", zap.String("jti", jti), zap.Error(err))
	}
	return true, nil
}

// Purge only touches the wrapped store; cache keys expire on their own.
func (s *CachedStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	return s.next.Purge(ctx, before)
}
