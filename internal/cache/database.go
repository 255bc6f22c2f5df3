package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/h4ev/formgate/internal/models"
)

// DatabaseStore keeps entries in the cache_entries table so that every
// replica sharing the database sees the same cache.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, s.now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		SizeBytes: int64(len(value)),
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("cache purge failed: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
