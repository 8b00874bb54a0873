package interfaces

import (
	"context"

	"fhir-gateway/internal/models"
)

// KeyValue is a durable store read and written at whole-value granularity
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SettingsSource supplies the settings used for token requests
type SettingsSource interface {
	Settings(ctx context.Context) (*models.Settings, error)
}

// CredentialStore persists the current credentials between sessions
type CredentialStore interface {
	LoadCredentials(ctx context.Context) (*models.Credentials, error)
	SaveCredentials(ctx context.Context, creds *models.Credentials) error
	DeleteCredentials(ctx context.Context) error
}
