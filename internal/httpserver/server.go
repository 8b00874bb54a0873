package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fhir-gateway/internal/auth"
	"fhir-gateway/internal/cache/service"
	"fhir-gateway/internal/config"
	"fhir-gateway/internal/fhir"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/session"
)

const maxRequestBody = 1 << 20

// Services are the components the API exposes
type Services struct {
	Cache    *service.CacheService
	Provider *auth.CredentialProvider
	Issuer   interfaces.TokenIssuer
	Settings interfaces.SettingsSource
	Session  *session.Store // nil when sessions are not persisted
	FHIR     *fhir.Client
}

// Server is the gateway's HTTP API
type Server struct {
	services Services
	cfg      *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates the API server
func NewServer(services Services, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = &config.Default().Server
	}
	return &Server{
		services: services,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start listens on the configured TCP address, or on the Unix socket when one is set
func (s *Server) Start() error {
	if s.cfg.SocketPath != "" {
		return s.StartUnixSocket(s.cfg.SocketPath)
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting HTTP server", zap.String("address", listener.Addr().String()))
	return s.serve(listener)
}

// StartUnixSocket starts the HTTP server on a Unix socket
func (s *Server) StartUnixSocket(socketPath string) error {
	if err := os.RemoveAll(socketPath); err != nil {
		s.logger.Warn("Failed to remove existing socket file", zap.String("path", socketPath), zap.Error(err))
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	if err := os.Chmod(socketPath, 0660); err != nil {
		s.logger.Warn("Failed to set socket permissions", zap.String("path", socketPath), zap.Error(err))
	}

	s.logger.Info("Starting HTTP server on Unix socket", zap.String("socket_path", socketPath))
	return s.serve(listener)
}

func (s *Server) serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	err := s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Router creates and configures the HTTP router
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recoverPanics, s.logRequests, limitBody(maxRequestBody))

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Session credentials
	router.HandleFunc("/auth/token", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/auth/token", s.handleLogout).Methods(http.MethodDelete)
	router.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	router.HandleFunc("/auth/status", s.handleAuthStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)

	router.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	router.HandleFunc("/settings", s.handleSaveSettings).Methods(http.MethodPut)
	router.HandleFunc("/settings", s.handleDeleteSettings).Methods(http.MethodDelete)

	// Caching client diagnostics
	router.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/clear", s.handleCacheClear).Methods(http.MethodPost)
	router.HandleFunc("/cache/cleanup", s.handleCacheCleanup).Methods(http.MethodPost)

	// Resource operations; specific routes first
	router.HandleFunc("/fhir/Appointment/conflicts", s.handleConflicts).Methods(http.MethodGet)
	router.HandleFunc("/fhir/Appointment/{id}/cancel", s.handleCancelAppointment).Methods(http.MethodPost)
	router.HandleFunc("/fhir/{resource}", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/fhir/{resource}", s.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/fhir/{resource}/{id}", s.handleRead).Methods(http.MethodGet)
	router.HandleFunc("/fhir/{resource}/{id}", s.handleUpdate).Methods(http.MethodPut)

	router.HandleFunc("/patients/{id}/eligibility", s.handleEligibility).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}/payments", s.handlePaymentHistory).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}/{kind}", s.handleClinicalList).Methods(http.MethodGet)

	router.HandleFunc("/billing/coverage", s.handleCoverage).Methods(http.MethodGet)
	router.HandleFunc("/billing/balances", s.handleBalances).Methods(http.MethodGet)
	router.HandleFunc("/billing/search", s.handleBillingSearch).Methods(http.MethodGet)
	router.HandleFunc("/billing/codes", s.handleBillingCodes).Methods(http.MethodGet)
	router.HandleFunc("/billing/report", s.handleBillingReport).Methods(http.MethodGet)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// parseRequest parses a JSON request body
func (s *Server) parseRequest(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, v)
}

// readResource reads a request body that is forwarded upstream as is
func (s *Server) readResource(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: request body must be a JSON document", fhir.ErrInvalidArgument)
	}
	return body, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, &Response{Success: true, Data: data})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, &Response{Success: false, Error: message})
}

// writeError maps err to a status code and writes the error envelope
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.writeErrorResponse(w, err.Error(), status)
}
