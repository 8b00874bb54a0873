package httpserver

import (
	"time"

	"fhir-gateway/internal/auth"
)

// Response is the envelope of every API reply except /api/refresh-token
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RefreshTokenRequest is the body of the stateless refresh endpoint
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthStatus describes the session's credentials without exposing them
type AuthStatus struct {
	State         auth.State `json:"state"`
	Authenticated bool       `json:"authenticated"`
	TokenType     string     `json:"tokenType,omitempty"`
	Expiry        *time.Time `json:"expiry,omitempty"`
	CanRefresh    bool       `json:"canRefresh"`
}
