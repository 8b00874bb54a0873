package models

import "strings"

// GrantType is the OAuth2 flow used against the token endpoint
type GrantType string

const (
	GrantTypePassword          GrantType = "password"
	GrantTypeClientCredentials GrantType = "client_credentials"
	GrantTypeRefreshToken      GrantType = "refresh_token"
)

// Settings is the credential source for the token endpoint and the resource API
type Settings struct {
	BaseURL       string    `json:"baseUrl,omitempty" yaml:"base_url" validate:"required,url"`
	FirmPrefix    string    `json:"firmPrefix,omitempty" yaml:"firm_prefix"`
	APIKey        string    `json:"apiKey,omitempty" yaml:"api_key" validate:"required"`
	OAuthEndpoint string    `json:"oauthEndpoint,omitempty" yaml:"oauth_endpoint" validate:"required"`
	GrantType     GrantType `json:"grantType,omitempty" yaml:"grant_type" validate:"omitempty,oneof=password client_credentials refresh_token"`
	Username      string    `json:"username,omitempty" yaml:"username" validate:"required_if=GrantType password"`
	Password      string    `json:"password,omitempty" yaml:"password" validate:"required_if=GrantType password"`
	ClientID      string    `json:"clientId,omitempty" yaml:"client_id" validate:"required_if=GrantType client_credentials"`
	ClientSecret  string    `json:"clientSecret,omitempty" yaml:"client_secret" validate:"required_if=GrantType client_credentials"`
}

// TokenURL joins base URL, firm prefix and OAuth endpoint
func (s *Settings) TokenURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.FirmPrefix + s.OAuthEndpoint
}

// Overlay returns a copy of s where every non-empty field of other wins
func (s Settings) Overlay(other *Settings) Settings {
	if other == nil {
		return s
	}
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	s.BaseURL = pick(s.BaseURL, other.BaseURL)
	s.FirmPrefix = pick(s.FirmPrefix, other.FirmPrefix)
	s.APIKey = pick(s.APIKey, other.APIKey)
	s.OAuthEndpoint = pick(s.OAuthEndpoint, other.OAuthEndpoint)
	s.GrantType = GrantType(pick(string(s.GrantType), string(other.GrantType)))
	s.Username = pick(s.Username, other.Username)
	s.Password = pick(s.Password, other.Password)
	s.ClientID = pick(s.ClientID, other.ClientID)
	s.ClientSecret = pick(s.ClientSecret, other.ClientSecret)
	return s
}

const redactedValue = "********"

// Redacted returns a copy of s with secrets masked
func (s Settings) Redacted() Settings {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return redactedValue
	}
	s.APIKey = mask(s.APIKey)
	s.Password = mask(s.Password)
	s.ClientSecret = mask(s.ClientSecret)
	return s
}
