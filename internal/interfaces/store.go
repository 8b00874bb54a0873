package interfaces

import (
	"time"

	"fhir-gateway/internal/models"
)

//go:generate mockgen -source=store.go -destination=mock/store.go -package=mock

// Store holds cache entries for the caching client.
// Expiry is decided by the caller; Get may return an expired entry.
type Store interface {
	Get(key string) (*models.CacheEntry, bool)
	Set(key string, entry *models.CacheEntry)
	Delete(key string)
	Purge(now time.Time) int // removes expired entries, returns how many
	Clear()
	Len() int
}
