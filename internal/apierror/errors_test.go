package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing configuration",
			err:  &ConfigurationError{Missing: []string{"base_url", "api_key"}},
			want: "missing required configuration: base_url, api_key",
		},
		{
			name: "invalid configuration",
			err:  &ConfigurationError{Reason: "refresh token is required"},
			want: "invalid configuration: refresh token is required",
		},
		{
			name: "upstream status",
			err:  &UpstreamStatusError{Op: "OAuth request", StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"},
			want: "OAuth request failed: 401 Unauthorized",
		},
		{
			name: "empty body",
			err:  &EmptyBodyError{Source: "OAuth endpoint"},
			want: "empty response from OAuth endpoint",
		},
		{
			name: "malformed",
			err:  &MalformedResponseError{Err: errors.New("unexpected end of JSON input")},
			want: "invalid JSON response: unexpected end of JSON input",
		},
		{
			name: "transport",
			err:  &TransportError{Op: "GET https://api.example.test/Patient", Err: errors.New("connection refused")},
			want: "GET https://api.example.test/Patient failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"configuration", &ConfigurationError{Missing: []string{"api_key"}}, KindConfiguration},
		{"wrapped status", fmt.Errorf("patient search: %w", &UpstreamStatusError{StatusCode: 500}), KindUpstreamStatus},
		{"empty body", &EmptyBodyError{Source: "x"}, KindEmptyBody},
		{"malformed", &MalformedResponseError{Err: errors.New("bad")}, KindMalformedResponse},
		{"transport", &TransportError{Op: "x", Err: errors.New("timeout")}, KindTransport},
		{"cache write", &CacheWriteError{Key: "k", Err: errors.New("bad")}, KindCacheWrite},
		{"unauthenticated", fmt.Errorf("fetch: %w", ErrUnauthenticated), KindUnauthenticated},
		{"unknown", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("token: %w", &TransportError{Op: "OAuth request", Err: inner})

	assert.ErrorIs(t, err, inner)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "OAuth request", transportErr.Op)
}

func TestWithOp(t *testing.T) {
	statusErr := &UpstreamStatusError{Op: "Request", StatusCode: http.StatusNotFound, Status: "404 Not Found"}

	relabelled := WithOp(statusErr, "Patient fetch")
	assert.EqualError(t, relabelled, "Patient fetch failed: 404 Not Found")
	assert.Equal(t, "Request", statusErr.Op)
	assert.Equal(t, KindUpstreamStatus, KindOf(relabelled))

	transportErr := &TransportError{Op: "Request", Err: errors.New("connection refused")}
	assert.EqualError(t, WithOp(fmt.Errorf("wrapped: %w", transportErr), "Coverage fetch"), "Coverage fetch failed: connection refused")

	plain := errors.New("plain")
	assert.Same(t, plain, WithOp(plain, "anything"))
	assert.Nil(t, WithOp(nil, "anything"))
}
