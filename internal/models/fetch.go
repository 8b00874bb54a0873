package models

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// FetchOptions configures a single call through the caching client.
// Body must already be serialized; it is part of the cache key byte for byte.
type FetchOptions struct {
	Method    string
	Header    http.Header
	Body      []byte
	TTL       time.Duration // zero means the client default
	SkipCache bool
}

// MethodOrDefault returns the upper-cased method, GET when unset
func (o *FetchOptions) MethodOrDefault() string {
	if o == nil || o.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(o.Method)
}

// Response is a fully read upstream (or synthesized cached) response.
// Callers that joined the same in-flight request share one Response and must not modify it.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Cached     bool
}

// NewCachedResponse synthesizes a 200 response around a copy of cached JSON
func NewCachedResponse(data json.RawMessage) *Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK (cached)",
		Header:     header,
		Body:       bytes.Clone(data),
		Cached:     true,
	}
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}
