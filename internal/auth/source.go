package auth

import (
	"context"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

var (
	_ interfaces.SettingsSource = StaticSource{}
	_ interfaces.SettingsSource = SourceFunc(nil)
)

// StaticSource always returns the same settings
type StaticSource struct {
	Value models.Settings
}

// Settings returns a copy of the static value
func (s StaticSource) Settings(context.Context) (*models.Settings, error) {
	v := s.Value
	return &v, nil
}

// SourceFunc adapts a function to interfaces.SettingsSource
type SourceFunc func(ctx context.Context) (*models.Settings, error)

// Settings calls f
func (f SourceFunc) Settings(ctx context.Context) (*models.Settings, error) {
	return f(ctx)
}
