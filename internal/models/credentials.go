package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the bearer credential set returned by the OAuth endpoint.
// It is always replaced as a whole; nothing mutates a stored value in place.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Token converts the credentials to an oauth2 token
func (c *Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// ExpiredAt reports whether the access token is past its expiry at now.
// Credentials without a known expiry never expire.
func (c *Credentials) ExpiredAt(now time.Time) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Before(c.Expiry)
}

// AuthorizationHeader returns the value for the Authorization header
func (c *Credentials) AuthorizationHeader() string {
	return c.Token().Type() + " " + c.AccessToken
}
