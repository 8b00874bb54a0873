package interfaces

import (
	"context"
	"net/http"

	"fhir-gateway/internal/models"
)

// HTTPDoer sends a single HTTP request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher is the caching, deduplicating request path used by resource clients
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts *models.FetchOptions) (*models.Response, error)
}
