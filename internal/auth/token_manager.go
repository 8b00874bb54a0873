// Package auth acquires and refreshes the bearer credentials for the EHR API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/metrics"
	"fhir-gateway/internal/models"
)

// Ensure TokenManager implements interfaces.TokenIssuer
var _ interfaces.TokenIssuer = (*TokenManager)(nil)

// settings needed by every grant
var endpointFields = []string{"BaseURL", "APIKey", "OAuthEndpoint"}

// TokenManager implements the token endpoint protocol. It does not persist anything.
type TokenManager struct {
	client   interfaces.HTTPDoer
	clock    clock.Clock
	logger   *zap.Logger
	validate *validator.Validate
}

// Option configures a TokenManager
type Option func(*TokenManager)

// WithClock replaces the clock used to stamp issued credentials
func WithClock(c clock.Clock) Option {
	return func(m *TokenManager) {
		m.clock = c
	}
}

// NewTokenManager creates a token manager that sends requests through client
func NewTokenManager(client interfaces.HTTPDoer, logger *zap.Logger, opts ...Option) *TokenManager {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	m := &TokenManager{
		client:   client,
		clock:    clock.New(),
		logger:   logger,
		validate: validate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tokenResponse is the token endpoint body. expires_in is sometimes sent as a string.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	Scope        string      `json:"scope"`
}

// AcquireToken requests new credentials with the password or client credentials grant
func (m *TokenManager) AcquireToken(ctx context.Context, src interfaces.SettingsSource) (*models.Credentials, error) {
	settings, err := src.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	s := *settings
	if s.GrantType == "" {
		s.GrantType = models.GrantTypePassword
	}
	if s.GrantType == models.GrantTypeRefreshToken {
		return nil, m.fail(s.GrantType, &apierror.ConfigurationError{Reason: "grant_type refresh_token needs a stored refresh token; use refresh"})
	}
	if err := m.validateSettings(&s); err != nil {
		return nil, m.fail(s.GrantType, err)
	}

	form := url.Values{"grant_type": {string(s.GrantType)}}
	switch s.GrantType {
	case models.GrantTypePassword:
		form.Set("username", s.Username)
		form.Set("password", s.Password)
	case models.GrantTypeClientCredentials:
		form.Set("client_id", s.ClientID)
		form.Set("client_secret", s.ClientSecret)
	}

	return m.request(ctx, &s, s.GrantType, "OAuth request", form)
}

// RefreshToken exchanges refreshToken for a new credential set
func (m *TokenManager) RefreshToken(ctx context.Context, refreshToken string, src interfaces.SettingsSource) (*models.Credentials, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, m.fail(models.GrantTypeRefreshToken, &apierror.ConfigurationError{Missing: []string{"refresh_token"}})
	}

	settings, err := src.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := m.validateSettings(settings, endpointFields...); err != nil {
		return nil, m.fail(models.GrantTypeRefreshToken, err)
	}

	form := url.Values{
		"grant_type":    {string(models.GrantTypeRefreshToken)},
		"refresh_token": {refreshToken},
	}
	return m.request(ctx, settings, models.GrantTypeRefreshToken, "Token refresh", form)
}

// validateSettings checks all fields, or only the named ones, and reports every problem at once
func (m *TokenManager) validateSettings(s *models.Settings, fields ...string) error {
	var err error
	if len(fields) > 0 {
		err = m.validate.StructPartial(s, fields...)
	} else {
		err = m.validate.Struct(s)
	}
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &apierror.ConfigurationError{Reason: err.Error()}
	}

	cfgErr := &apierror.ConfigurationError{}
	var invalid []string
	for _, fe := range validationErrs {
		switch fe.Tag() {
		case "required", "required_if":
			cfgErr.Missing = append(cfgErr.Missing, fe.Field())
		default:
			invalid = append(invalid, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	if len(cfgErr.Missing) == 0 {
		cfgErr.Reason = strings.Join(invalid, "; ")
	}
	return cfgErr
}

func (m *TokenManager) request(ctx context.Context, s *models.Settings, grant models.GrantType, op string, form url.Values) (*models.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, m.fail(grant, &apierror.ConfigurationError{Reason: fmt.Sprintf("token URL: %v", err)})
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, m.fail(grant, &apierror.TransportError{Op: op, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, m.fail(grant, &apierror.TransportError{Op: op, Err: fmt.Errorf("reading response body: %w", err)})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, m.fail(grant, &apierror.UpstreamStatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       body,
		})
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, m.fail(grant, &apierror.EmptyBodyError{Source: "OAuth endpoint"})
	}

	creds, err := m.parseCredentials(body)
	if err != nil {
		return nil, m.fail(grant, err)
	}

	metrics.RecordTokenRequest(string(grant), "success")
	m.logger.Info("Token issued",
		zap.String("grant_type", string(grant)),
		zap.String("token_type", creds.TokenType),
		zap.Time("expiry", creds.Expiry),
		zap.Bool("refreshable", creds.RefreshToken != ""))

	return creds, nil
}

func (m *TokenManager) parseCredentials(body []byte) (*models.Credentials, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &apierror.MalformedResponseError{Err: err}
	}
	switch {
	case tr.AccessToken == "":
		return nil, &apierror.MalformedResponseError{Err: errors.New("missing access_token")}
	case tr.TokenType == "":
		return nil, &apierror.MalformedResponseError{Err: errors.New("missing token_type")}
	}

	var expiresIn int64
	if tr.ExpiresIn != "" {
		n, err := tr.ExpiresIn.Int64()
		if err != nil {
			return nil, &apierror.MalformedResponseError{Err: fmt.Errorf("expires_in: %w", err)}
		}
		expiresIn = n
	}

	issuedAt := m.clock.Now()
	creds := &models.Credentials{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tr.RefreshToken,
		Scope:        tr.Scope,
		IssuedAt:     issuedAt,
	}
	if expiresIn > 0 {
		creds.Expiry = issuedAt.Add(time.Duration(expiresIn) * time.Second)
	} else if exp, ok := jwtExpiry(tr.AccessToken); ok {
		creds.Expiry = exp
	}
	return creds, nil
}

// jwtExpiry reads exp from a JWT access token without verifying it.
// Opaque tokens report false.
func jwtExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (m *TokenManager) fail(grant models.GrantType, err error) error {
	kind := apierror.KindOf(err)
	metrics.RecordTokenRequest(string(grant), string(kind))
	m.logger.Warn("Token request failed",
		zap.String("grant_type", string(grant)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return err
}
