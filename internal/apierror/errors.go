// Package apierror holds the failure taxonomy shared by the token manager,
// the caching client and the resource client.
package apierror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for metrics and HTTP status mapping
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindTransport         Kind = "transport"
	KindUpstreamStatus    Kind = "upstream_status"
	KindEmptyBody         Kind = "empty_body"
	KindMalformedResponse Kind = "malformed_response"
	KindCacheWrite        Kind = "cache_write"
	KindUnauthenticated   Kind = "unauthenticated"
	KindUnknown           Kind = "unknown"
)

// ErrUnauthenticated is returned when no credentials are held for the session
var ErrUnauthenticated = errors.New("not authenticated: acquire a token first")

// ConfigurationError means required settings are missing; no request was sent
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required configuration: " + strings.Join(e.Missing, ", ")
	}
	return "invalid configuration: " + e.Reason
}

// TransportError wraps a network failure (DNS, refused connection, timeout)
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamStatusError captures a non-success status and the response body
type UpstreamStatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

// EmptyBodyError means the server answered with a blank body where JSON was expected
type EmptyBodyError struct {
	Source string
}

func (e *EmptyBodyError) Error() string {
	return "empty response from " + e.Source
}

// MalformedResponseError means the body was present but not usable JSON
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// CacheWriteError records a response that could not be cached.
// It is logged and counted, never returned to callers.
type CacheWriteError struct {
	Key string
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write for %q skipped: %v", e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Err
}

// KindOf classifies err by walking its wrap chain
func KindOf(err error) Kind {
	var (
		cfgErr       *ConfigurationError
		transportErr *TransportError
		statusErr    *UpstreamStatusError
		emptyErr     *EmptyBodyError
		malformedErr *MalformedResponseError
		cacheErr     *CacheWriteError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &statusErr):
		return KindUpstreamStatus
	case errors.As(err, &emptyErr):
		return KindEmptyBody
	case errors.As(err, &malformedErr):
		return KindMalformedResponse
	case errors.As(err, &cacheErr):
		return KindCacheWrite
	case errors.As(err, &transportErr):
		return KindTransport
	default:
		return KindUnknown
	}
}

// WithOp returns err relabelled with op when it is a status or transport error.
// The original value is left untouched; joined callers may share it.
func WithOp(err error, op string) error {
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		relabelled := *statusErr
		relabelled.Op = op
		return &relabelled
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		relabelled := *transportErr
		relabelled.Op = op
		return &relabelled
	}
	return err
}
