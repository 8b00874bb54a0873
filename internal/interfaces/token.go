package interfaces

import (
	"context"

	"fhir-gateway/internal/models"
)

//go:generate mockgen -source=token.go -destination=mock/token.go -package=mock

// TokenIssuer speaks the token endpoint protocol without holding any state
type TokenIssuer interface {
	AcquireToken(ctx context.Context, src SettingsSource) (*models.Credentials, error)
	RefreshToken(ctx context.Context, refreshToken string, src SettingsSource) (*models.Credentials, error)
}

// CredentialSource hands out credentials that are valid for an outbound request
type CredentialSource interface {
	ValidOrRefresh(ctx context.Context) (*models.Credentials, error)
}
