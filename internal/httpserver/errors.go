package httpserver

import (
	"context"
	"errors"
	"net/http"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/fhir"
)

// statusFor maps an operation error to the HTTP status returned to the caller
func statusFor(err error) int {
	if errors.Is(err, fhir.ErrInvalidArgument) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	switch apierror.KindOf(err) {
	case apierror.KindConfiguration:
		return http.StatusInternalServerError
	case apierror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apierror.KindUpstreamStatus:
		var statusErr *apierror.UpstreamStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode <= 599 {
			return statusErr.StatusCode
		}
		return http.StatusBadGateway
	case apierror.KindTransport, apierror.KindEmptyBody, apierror.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
