package httpserver

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fhir-gateway/internal/models"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := s.services.Provider.Login(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, creds)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	creds, err := s.services.Provider.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, creds)
}

// handleLogout forgets the credentials and drops every cached response
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Provider.Logout(r.Context()); err != nil {
		s.logger.Warn("Failed to delete stored credentials", zap.Error(err))
	}
	s.services.Cache.Clear()
	s.writeResponse(w, map[string]bool{"loggedOut": true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status := AuthStatus{State: s.services.Provider.State()}
	if creds, ok := s.services.Provider.Current(); ok {
		status.Authenticated = true
		status.TokenType = creds.TokenType
		status.CanRefresh = creds.RefreshToken != ""
		if !creds.Expiry.IsZero() {
			expiry := creds.Expiry
			status.Expiry = &expiry
		}
	}
	s.writeResponse(w, status)
}

// handleRefreshToken exchanges a caller-supplied refresh token without touching
// the session. It answers with the raw token response, not the envelope.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := s.parseRequest(r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Refresh token is required"})
		return
	}

	creds, err := s.services.Issuer.RefreshToken(r.Context(), req.RefreshToken, s.services.Settings)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.services.Settings.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, settings.Redacted())
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if s.services.Session == nil {
		s.writeErrorResponse(w, "settings are not persisted by this gateway", http.StatusNotImplemented)
		return
	}

	var settings models.Settings
	if err := s.parseRequest(r, &settings); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := s.services.Session.SaveSettings(r.Context(), &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, settings.Redacted())
}

func (s *Server) handleDeleteSettings(w http.ResponseWriter, r *http.Request) {
	if s.services.Session == nil {
		s.writeErrorResponse(w, "settings are not persisted by this gateway", http.StatusNotImplemented)
		return
	}
	if err := s.services.Session.DeleteSettings(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, map[string]bool{"deleted": true})
}
