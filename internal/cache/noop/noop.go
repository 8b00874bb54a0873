package noop

import (
	"time"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

// Ensure NoOpStore implements interfaces.Store
var _ interfaces.Store = (*NoOpStore)(nil)

// NoOpStore is a no-operation store used when caching is disabled.
// Requests are still deduplicated by the caching client.
type NoOpStore struct{}

// NewNoOpStore creates a new no-operation store instance
func NewNoOpStore() interfaces.Store {
	return &NoOpStore{}
}

// Get always returns a miss
func (n *NoOpStore) Get(key string) (*models.CacheEntry, bool) {
	return nil, false
}

// Set does nothing
func (n *NoOpStore) Set(key string, entry *models.CacheEntry) {
	// No-op
}

// Delete does nothing
func (n *NoOpStore) Delete(key string) {
	// No-op
}

// Purge never has anything to remove
func (n *NoOpStore) Purge(now time.Time) int {
	return 0
}

// Clear does nothing
func (n *NoOpStore) Clear() {
	// No-op
}

// Len is always zero
func (n *NoOpStore) Len() int {
	return 0
}
