// Package ratelimit provides the request limiter and its shared backing store.
package ratelimit

import (
	"errors"
	"time"

	"invoicepay-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is a fiber.Storage over the rate_limit_entries table, for
// deployments where several instances must share one limit.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStorage(db *gorm.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

func (s *Storage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	var entry models.RateLimitEntry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if entry.ExpiresAt != 0 && entry.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}
	return entry.Value, nil
}

func (s *Storage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	var expiresAt int64
	if exp > 0 {
		expiresAt = s.now().Add(exp).Unix()
	}
	entry := models.RateLimitEntry{Key: key, Value: val, ExpiresAt: expiresAt}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
}

func (s *Storage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.db.Where("key = ?", key).Delete(&models.RateLimitEntry{}).Error
}

func (s *Storage) Reset() error {
	return s.db.Where("1 = 1").Delete(&models.RateLimitEntry{}).Error
}

// Close is a no-op; the connection pool belongs to the application.
func (s *Storage) Close() error { return nil }

// PurgeExpired removes stale entries and reports how many went.
func (s *Storage) PurgeExpired() (int64, error) {
	res := s.db.Where("expires_at <> 0 AND expires_at <= ?", s.now().Unix()).Delete(&models.RateLimitEntry{})
	return res.RowsAffected, res.Error
}
