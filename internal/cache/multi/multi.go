package multi

import (
	"time"

	"go.uber.org/zap"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

// Ensure MultiStore implements interfaces.Store
var _ interfaces.Store = (*MultiStore)(nil)

// MultiStore implements a composite store that tries multiple store implementations
// in order, fastest first
type MultiStore struct {
	stores       []interfaces.Store
	promoteOnHit bool
	logger       *zap.Logger
}

// NewMultiStore creates a new MultiStore instance with provided store implementations.
// With promoteOnHit, an entry found in a later store is copied into the earlier ones.
func NewMultiStore(stores []interfaces.Store, promoteOnHit bool, logger *zap.Logger) interfaces.Store {
	return &MultiStore{
		stores:       stores,
		promoteOnHit: promoteOnHit,
		logger:       logger,
	}
}

// Get retrieves the entry from the first store that has the key
func (ms *MultiStore) Get(key string) (*models.CacheEntry, bool) {
	if len(ms.stores) == 0 {
		ms.logger.Warn("No stores available for get operation", zap.String("key", key))
		return nil, false
	}

	for i, store := range ms.stores {
		entry, found := store.Get(key)
		if !found {
			continue
		}
		if ms.promoteOnHit {
			for _, upper := range ms.stores[:i] {
				upper.Set(key, entry)
			}
		}
		return entry, true
	}
	return nil, false
}

// Set stores the entry in all stores
func (ms *MultiStore) Set(key string, entry *models.CacheEntry) {
	if len(ms.stores) == 0 {
		ms.logger.Warn("No stores available for set operation", zap.String("key", key))
		return
	}

	for _, store := range ms.stores {
		store.Set(key, entry)
	}
}

// Delete removes the entry from all stores
func (ms *MultiStore) Delete(key string) {
	for _, store := range ms.stores {
		store.Delete(key)
	}
}

// Purge purges every store and returns the total removed
func (ms *MultiStore) Purge(now time.Time) int {
	removed := 0
	for _, store := range ms.stores {
		removed += store.Purge(now)
	}
	return removed
}

// Clear empties every store
func (ms *MultiStore) Clear() {
	for _, store := range ms.stores {
		store.Clear()
	}
}

// Len reports the size of the first store
func (ms *MultiStore) Len() int {
	if len(ms.stores) == 0 {
		return 0
	}
	return ms.stores[0].Len()
}

// GetStoreCount returns the number of stores in the multi-store
func (ms *MultiStore) GetStoreCount() int {
	return len(ms.stores)
}
