package memory

import (
	"sync"
	"time"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

// Ensure MemoryStore implements interfaces.Store
var _ interfaces.Store = (*MemoryStore)(nil)

// MemoryStore is a process-wide map of cache entries guarded by a RWMutex
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*models.CacheEntry),
	}
}

// Get returns the stored entry, expired or not
func (m *MemoryStore) Get(key string) (*models.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	return entry, ok
}

// Set replaces any entry under key
func (m *MemoryStore) Set(key string, entry *models.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry
}

// Delete removes key
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

// Purge removes every entry expired at now
func (m *MemoryStore) Purge(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.IsExpired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*models.CacheEntry)
}

// Len returns the number of stored entries, including expired ones not yet purged
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
