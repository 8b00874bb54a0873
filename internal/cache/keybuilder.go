package cache

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"fhir-gateway/internal/interfaces"
)

// Ensure KeyBuilderImpl implements interfaces.KeyBuilder
var _ interfaces.KeyBuilder = (*KeyBuilderImpl)(nil)

// KeyBuilderImpl implements the KeyBuilder interface
type KeyBuilderImpl struct{}

// NewKeyBuilder creates a new KeyBuilder instance
func NewKeyBuilder() interfaces.KeyBuilder {
	return &KeyBuilderImpl{}
}

// Build creates a cache key of the form METHOD:URL:bodyHash.
// The URL is used verbatim, query string included. The body is hashed as given:
// two JSON documents that differ only in key order produce different keys.
func (kb *KeyBuilderImpl) Build(method, url string, body []byte) string {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyHash string
	if len(body) > 0 {
		bodyHash = fmt.Sprintf("%x", md5.Sum(body))
	}

	return fmt.Sprintf("%s:%s:%s", method, url, bodyHash)
}
