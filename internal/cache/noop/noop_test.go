package noop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fhir-gateway/internal/models"
)

func TestNoOpStore(t *testing.T) {
	store := NewNoOpStore()

	store.Set("k", &models.CacheEntry{Data: []byte(`{}`), CreatedAt: time.Now(), TTL: time.Minute})

	entry, found := store.Get("k")
	assert.False(t, found)
	assert.Nil(t, entry)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.Purge(time.Now()))

	store.Delete("k")
	store.Clear()
}
