package cache

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder_Build(t *testing.T) {
	kb := NewKeyBuilder()

	tests := []struct {
		name   string
		method string
		url    string
		body   []byte
		want   string
	}{
		{
			name:   "default method",
			method: "",
			url:    "https://api.example.test/Patient",
			want:   "GET:https://api.example.test/Patient:",
		},
		{
			name:   "method is upper-cased",
			method: "get",
			url:    "https://api.example.test/Patient?family=Doe",
			want:   "GET:https://api.example.test/Patient?family=Doe:",
		},
		{
			name:   "body is hashed",
			method: "POST",
			url:    "https://api.example.test/Patient",
			body:   []byte(`{"resourceType":"Patient"}`),
			want:   "POST:https://api.example.test/Patient:" + fmt.Sprintf("%x", md5.Sum([]byte(`{"resourceType":"Patient"}`))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kb.Build(tt.method, tt.url, tt.body))
		})
	}
}

func TestKeyBuilder_Deterministic(t *testing.T) {
	kb := NewKeyBuilder()
	body := []byte(`{"id":"123","status":"cancelled"}`)

	first := kb.Build("PUT", "https://api.example.test/Appointment/123", body)
	second := kb.Build("PUT", "https://api.example.test/Appointment/123", append([]byte(nil), body...))

	assert.Equal(t, first, second)
}

func TestKeyBuilder_Sensitivity(t *testing.T) {
	kb := NewKeyBuilder()
	base := kb.Build("GET", "https://api.example.test/Patient?family=Doe", nil)

	t.Run("query string", func(t *testing.T) {
		other := kb.Build("GET", "https://api.example.test/Patient?family=Roe", nil)
		assert.NotEqual(t, base, other)
	})

	t.Run("method", func(t *testing.T) {
		other := kb.Build("POST", "https://api.example.test/Patient?family=Doe", nil)
		assert.NotEqual(t, base, other)
	})

	t.Run("body", func(t *testing.T) {
		a := kb.Build("POST", "https://api.example.test/Patient", []byte(`{"a":1}`))
		b := kb.Build("POST", "https://api.example.test/Patient", []byte(`{"a":2}`))
		assert.NotEqual(t, a, b)
	})

	t.Run("key order is not canonicalized", func(t *testing.T) {
		a := kb.Build("POST", "https://api.example.test/Patient", []byte(`{"a":1,"b":2}`))
		b := kb.Build("POST", "https://api.example.test/Patient", []byte(`{"b":2,"a":1}`))
		assert.NotEqual(t, a, b)
	})
}
