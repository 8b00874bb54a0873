package utils

import (
	"bytes"
	"encoding/json"
	"errors"

	"fhir-gateway/internal/apierror"
)

// EmptyBundle is the placeholder used when a report section could not be fetched
var EmptyBundle = json.RawMessage(`{"entry":[]}`)

// ParseJSONBody checks that body is a JSON document and returns it untouched
func ParseJSONBody(body []byte, source string) (json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &apierror.EmptyBodyError{Source: source}
	}
	if !json.Valid(body) {
		return nil, &apierror.MalformedResponseError{Err: errors.New("body is not valid JSON")}
	}
	return json.RawMessage(body), nil
}
