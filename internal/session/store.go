// Package session persists the credentials and user-entered settings of a session.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

const (
	CredentialsKey = "oauth_tokens"
	SettingsKey    = "api_credentials"
)

var (
	_ interfaces.CredentialStore = (*Store)(nil)
	_ interfaces.SettingsSource  = (*LayeredSource)(nil)
)

// Store reads and writes whole objects on a key-value backend
type Store struct {
	kv     interfaces.KeyValue
	logger *zap.Logger
}

// NewStore creates a session store
func NewStore(kv interfaces.KeyValue, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func (s *Store) load(ctx context.Context, key string, v interface{}) (bool, error) {
	data, found, err := s.kv.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, data)
}

// LoadCredentials returns nil when nothing is stored
func (s *Store) LoadCredentials(ctx context.Context) (*models.Credentials, error) {
	var creds models.Credentials
	found, err := s.load(ctx, CredentialsKey, &creds)
	if err != nil || !found {
		return nil, err
	}
	return &creds, nil
}

// SaveCredentials replaces the stored credentials
func (s *Store) SaveCredentials(ctx context.Context, creds *models.Credentials) error {
	return s.save(ctx, CredentialsKey, creds)
}

// DeleteCredentials removes the stored credentials
func (s *Store) DeleteCredentials(ctx context.Context) error {
	return s.kv.Delete(ctx, CredentialsKey)
}

// LoadSettings returns nil when the user never saved settings
func (s *Store) LoadSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	found, err := s.load(ctx, SettingsKey, &settings)
	if err != nil || !found {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings replaces the stored settings
func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if err := s.save(ctx, SettingsKey, settings); err != nil {
		return err
	}
	s.logger.Info("Saved API settings", zap.String("base_url", settings.BaseURL))
	return nil
}

// DeleteSettings removes the stored settings, falling back to configuration
func (s *Store) DeleteSettings(ctx context.Context) error {
	return s.kv.Delete(ctx, SettingsKey)
}

// LayeredSource overlays stored settings on the configured ones field by field.
// A non-empty stored field wins.
type LayeredSource struct {
	base  models.Settings
	store *Store
}

// NewLayeredSource creates a settings source over base and store
func NewLayeredSource(base models.Settings, store *Store) *LayeredSource {
	return &LayeredSource{base: base, store: store}
}

// Settings returns the merged settings
func (l *LayeredSource) Settings(ctx context.Context) (*models.Settings, error) {
	stored, err := l.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	merged := l.base.Overlay(stored)
	return &merged, nil
}
