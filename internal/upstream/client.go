// Package upstream builds the HTTP client used for every call to the EHR API.
package upstream

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fhir-gateway/internal/config"
)

// userAgentRoundTripper sets the User-Agent header on every request
type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone request to avoid mutating the original
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// rateLimitRoundTripper waits for a limiter token before each request
type rateLimitRoundTripper struct {
	wrapped http.RoundTripper
	limiter *rate.Limiter
}

func (rt *rateLimitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return rt.wrapped.RoundTrip(req)
}

// NewHTTPClient returns a client with the configured timeout, User-Agent and
// optional rate limit. A nil base transport means http.DefaultTransport.
func NewHTTPClient(cfg *config.UpstreamConfig, base http.RoundTripper, logger *zap.Logger) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}

	transport := base
	if cfg.RateLimit.RequestsPerSecond > 0 {
		transport = &rateLimitRoundTripper{
			wrapped: transport,
			limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		}
		logger.Info("Upstream rate limit enabled",
			zap.Float64("requests_per_second", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
	}
	if cfg.UserAgent != "" {
		transport = &userAgentRoundTripper{
			wrapped:   transport,
			userAgent: cfg.UserAgent,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
