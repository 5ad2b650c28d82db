package models

// RateLimitEntry backs the limiter when several instances share one database.
type RateLimitEntry struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte
	ExpiresAt int64 `gorm:"index"` // unix seconds, 0 = no expiry
}
