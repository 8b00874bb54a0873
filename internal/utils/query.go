package utils

import (
	"net/url"
	"strings"
)

// CompactQuery builds query values from params, dropping keys with blank values
func CompactQuery(params map[string]string) url.Values {
	values := make(url.Values, len(params))
	for key, value := range params {
		if key == "" || strings.TrimSpace(value) == "" {
			continue
		}
		values.Set(key, value)
	}
	return values
}

// JoinURL appends path segments to base, escaping each segment
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(strings.Trim(segment, "/")))
	}
	return b.String()
}

// WithQuery appends encoded query values to rawURL when there are any
func WithQuery(rawURL string, query url.Values) string {
	if len(query) == 0 {
		return rawURL
	}
	return rawURL + "?" + query.Encode()
}
