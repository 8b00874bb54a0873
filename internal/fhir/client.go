// Package fhir is the resource client for the EHR's FHIR API. Every call goes
// through the caching client: reads are cached and deduplicated, writes bypass the
// cache but still share identical in-flight requests.
package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/config"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
	"fhir-gateway/internal/utils"
)

// ContentType is the media type of every FHIR request and response
const ContentType = "application/fhir+json"

// Resource types addressed by the client
const (
	ResourcePatient            = "Patient"
	ResourceAppointment        = "Appointment"
	ResourceAllergyIntolerance = "AllergyIntolerance"
	ResourceCondition          = "Condition"
	ResourceMedication         = "MedicationStatement"
	ResourceImmunization       = "Immunization"
	ResourceCoverage           = "Coverage"
	ResourceExplanation        = "ExplanationOfBenefit"
	ResourceAccount            = "Account"
	ResourceClaim              = "Claim"
	ResourcePaymentNotice      = "PaymentNotice"
	ResourceChargeItem         = "ChargeItem"
)

var knownResources = map[string]bool{
	ResourcePatient:            true,
	ResourceAppointment:        true,
	ResourceAllergyIntolerance: true,
	ResourceCondition:          true,
	ResourceMedication:         true,
	ResourceImmunization:       true,
	ResourceCoverage:           true,
	ResourceExplanation:        true,
	ResourceAccount:            true,
	ResourceClaim:              true,
	ResourcePaymentNotice:      true,
	ResourceChargeItem:         true,
}

// IsKnownResource reports whether the client serves resourceType
func IsKnownResource(resourceType string) bool {
	return knownResources[resourceType]
}

// ErrInvalidArgument marks a call rejected before any request was sent
var ErrInvalidArgument = errors.New("invalid argument")

// Client issues FHIR requests with the session's credentials
type Client struct {
	fetcher         interfaces.Fetcher
	credentials     interfaces.CredentialSource
	settings        interfaces.SettingsSource
	apiPath         string
	patientEndpoint string
	readTTL         time.Duration
	rules           interfaces.CacheRulesClassifier
	clock           clock.Clock
	logger          *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithClock sets the clock used for report timestamps
func WithClock(c clock.Clock) Option {
	return func(cl *Client) {
		cl.clock = c
	}
}

// WithReadTTL overrides the cache lifetime of read responses
func WithReadTTL(ttl time.Duration) Option {
	return func(cl *Client) {
		cl.readTTL = ttl
	}
}

// WithCacheRules sets per resource type cache lifetimes for reads
func WithCacheRules(rules interfaces.CacheRulesClassifier) Option {
	return func(cl *Client) {
		cl.rules = rules
	}
}

// NewClient creates a resource client on top of fetcher
func NewClient(fetcher interfaces.Fetcher, credentials interfaces.CredentialSource, settings interfaces.SettingsSource, cfg *config.UpstreamConfig, logger *zap.Logger, opts ...Option) *Client {
	apiPath := config.DefaultAPIPath
	patientEndpoint := ""
	if cfg != nil {
		if cfg.APIPath != "" {
			apiPath = cfg.APIPath
		}
		patientEndpoint = cfg.PatientEndpoint
	}

	c := &Client{
		fetcher:         fetcher,
		credentials:     credentials,
		settings:        settings,
		apiPath:         "/" + strings.Trim(apiPath, "/"),
		patientEndpoint: patientEndpoint,
		clock:           clock.New(),
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method       string
	resourceType string
	id           string
	query        url.Values
	body         json.RawMessage
	op           string
}

func (c *Client) resourceURL(s *models.Settings, resourceType, id string) string {
	base := strings.TrimSuffix(s.BaseURL, "/")

	var segments []string
	if resourceType == ResourcePatient && c.patientEndpoint != "" {
		base += "/" + strings.Trim(c.patientEndpoint, "/")
	} else {
		base += c.apiPath
		segments = append(segments, resourceType)
	}
	if id != "" {
		segments = append(segments, id)
	}
	return utils.JoinURL(base, segments...)
}

func (c *Client) resolveSettings(ctx context.Context) (*models.Settings, error) {
	s, err := c.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var missing []string
	if s == nil || strings.TrimSpace(s.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if s == nil || strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return nil, &apierror.ConfigurationError{Missing: missing}
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	settings, err := c.resolveSettings(ctx)
	if err != nil {
		return nil, err
	}
	creds, err := c.credentials.ValidOrRefresh(ctx)
	if err != nil {
		return nil, err
	}

	target := utils.WithQuery(c.resourceURL(settings, req.resourceType, req.id), req.query)

	header := make(http.Header)
	header.Set("Accept", ContentType)
	header.Set("Authorization", creds.AuthorizationHeader())
	header.Set("x-api-key", settings.APIKey)

	opts := &models.FetchOptions{
		Method: req.method,
		Header: header,
		TTL:    c.readTTL,
	}
	if req.method != http.MethodGet {
		header.Set("Content-Type", ContentType)
		opts.Body = req.body
		opts.SkipCache = true
	} else if c.rules != nil {
		info := c.rules.Classify(req.resourceType)
		if info.CacheType == models.CacheTypeNone {
			opts.SkipCache = true
		} else {
			opts.TTL = info.TTL
		}
	}

	resp, err := c.fetcher.Fetch(ctx, target, opts)
	if err != nil {
		c.logger.Debug("FHIR request failed",
			zap.String("op", req.op),
			zap.String("method", req.method),
			zap.String("url", target),
			zap.Error(err))
		return nil, apierror.WithOp(err, req.op)
	}

	return utils.ParseJSONBody(resp.Body, req.resourceType+" endpoint")
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: resource id is required", ErrInvalidArgument)
	}
	return nil
}

func requireResource(resource json.RawMessage) error {
	if len(resource) == 0 || !json.Valid(resource) {
		return fmt.Errorf("%w: resource body must be a JSON document", ErrInvalidArgument)
	}
	return nil
}

// List returns the unfiltered search bundle of resourceType
func (c *Client) List(ctx context.Context, resourceType string) (json.RawMessage, error) {
	return c.search(ctx, resourceType, nil, label(resourceType)+" fetch")
}

// Search runs a search on resourceType; blank parameters are dropped
func (c *Client) Search(ctx context.Context, resourceType string, params map[string]string) (json.RawMessage, error) {
	return c.search(ctx, resourceType, utils.CompactQuery(params), label(resourceType)+" search")
}

func (c *Client) search(ctx context.Context, resourceType string, query url.Values, op string) (json.RawMessage, error) {
	return c.do(ctx, request{
		method:       http.MethodGet,
		resourceType: resourceType,
		query:        query,
		op:           op,
	})
}

// Read fetches a single resource by id
func (c *Client) Read(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	return c.read(ctx, resourceType, id, label(resourceType)+" fetch")
}

func (c *Client) read(ctx context.Context, resourceType, id, op string) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return c.do(ctx, request{
		method:       http.MethodGet,
		resourceType: resourceType,
		id:           id,
		op:           op,
	})
}

// Create posts a new resource
func (c *Client) Create(ctx context.Context, resourceType string, resource json.RawMessage) (json.RawMessage, error) {
	return c.create(ctx, resourceType, resource, label(resourceType)+" creation")
}

func (c *Client) create(ctx context.Context, resourceType string, resource json.RawMessage, op string) (json.RawMessage, error) {
	if err := requireResource(resource); err != nil {
		return nil, err
	}
	return c.do(ctx, request{
		method:       http.MethodPost,
		resourceType: resourceType,
		body:         resource,
		op:           op,
	})
}

// Update replaces the resource with the given id
func (c *Client) Update(ctx context.Context, resourceType, id string, resource json.RawMessage) (json.RawMessage, error) {
	return c.update(ctx, resourceType, id, resource, label(resourceType)+" update")
}

func (c *Client) update(ctx context.Context, resourceType, id string, resource json.RawMessage, op string) (json.RawMessage, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	if err := requireResource(resource); err != nil {
		return nil, err
	}
	return c.do(ctx, request{
		method:       http.MethodPut,
		resourceType: resourceType,
		id:           id,
		body:         resource,
		op:           op,
	})
}

// label is the name used in operation error messages
func label(resourceType string) string {
	switch resourceType {
	case ResourceAllergyIntolerance:
		return "Allergy"
	case ResourceMedication:
		return "Medication"
	default:
		return resourceType
	}
}

// recoverable reports whether a fallback resource may be tried after err
func recoverable(err error) bool {
	switch apierror.KindOf(err) {
	case apierror.KindUpstreamStatus, apierror.KindTransport, apierror.KindEmptyBody, apierror.KindMalformedResponse:
		return true
	default:
		return false
	}
}
