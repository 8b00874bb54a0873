package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is a parsed upstream JSON body kept for TTL after CreatedAt
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

// ExpiresAt returns the first instant at which the entry is no longer served
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// IsExpired reports whether the entry must be treated as a miss at now
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Stats holds the diagnostic sizes of the caching client
type Stats struct {
	CacheSize       int `json:"cacheSize"`
	PendingRequests int `json:"pendingRequests"`
}

// CleanupResult reports what a cleanup pass removed
type CleanupResult struct {
	ExpiredEntries int `json:"expiredEntries"`
	StalePending   int `json:"stalePending"`
}
