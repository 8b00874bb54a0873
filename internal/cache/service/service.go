package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/cache"
	"fhir-gateway/internal/config"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/metrics"
	"fhir-gateway/internal/models"
	"fhir-gateway/internal/scheduler"
)

// Ensure CacheService implements interfaces.Fetcher
var _ interfaces.Fetcher = (*CacheService)(nil)

// pendingRequest is an in-flight upstream call shared by every caller with the same key
type pendingRequest struct {
	done       chan struct{}
	resp       *models.Response
	err        error
	startedAt  time.Time
	generation uint64
}

// CacheService executes outbound requests with response caching and
// in-flight deduplication
type CacheService struct {
	store          interfaces.Store
	transport      interfaces.HTTPDoer
	keyBuilder     interfaces.KeyBuilder
	clock          clock.Clock
	logger         *zap.Logger
	defaultTTL     time.Duration
	pendingTimeout time.Duration

	mu         sync.Mutex
	pending    map[string]*pendingRequest
	generation uint64 // bumped by Clear; older calls do not write the cache

	cleanupScheduler *scheduler.Scheduler
}

// Option configures a CacheService
type Option func(*CacheService)

// WithClock replaces the wall clock used for TTLs and the join window
func WithClock(c clock.Clock) Option {
	return func(s *CacheService) {
		s.clock = c
	}
}

// WithKeyBuilder replaces the default key builder
func WithKeyBuilder(kb interfaces.KeyBuilder) Option {
	return func(s *CacheService) {
		s.keyBuilder = kb
	}
}

// NewCacheService creates the caching client and starts its periodic cleanup.
// Call Close to stop the cleanup task.
func NewCacheService(store interfaces.Store, transport interfaces.HTTPDoer, cfg *config.CacheConfig, logger *zap.Logger, opts ...Option) *CacheService {
	s := &CacheService{
		store:          store,
		transport:      transport,
		keyBuilder:     cache.NewKeyBuilder(),
		clock:          clock.New(),
		logger:         logger,
		defaultTTL:     cfg.DefaultTTL,
		pendingTimeout: cfg.PendingTimeout,
		pending:        make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cleanupScheduler = scheduler.New(cfg.CleanupInterval, func() { s.Cleanup() }, scheduler.WithClock(s.clock))
	s.cleanupScheduler.Start()

	logger.Info("Cache service started",
		zap.Duration("default_ttl", s.defaultTTL),
		zap.Duration("pending_timeout", s.pendingTimeout),
		zap.Duration("cleanup_interval", cfg.CleanupInterval))

	return s
}

// Fetch returns the cached JSON for the request when it is still valid, joins an
// identical request started within the join window, or performs the call.
// The shared call is not cancelled when ctx is; only this caller stops waiting.
func (s *CacheService) Fetch(ctx context.Context, url string, opts *models.FetchOptions) (*models.Response, error) {
	var o models.FetchOptions
	if opts != nil {
		o = *opts
	}
	method := o.MethodOrDefault()
	key := s.keyBuilder.Build(method, url, o.Body)

	metrics.RecordCacheRequest(method)

	if !o.SkipCache {
		if resp, ok := s.lookup(key, method); ok {
			return resp, nil
		}
		metrics.RecordCacheMiss(method)
	}

	s.mu.Lock()
	if p, ok := s.pending[key]; ok && s.clock.Since(p.startedAt) < s.pendingTimeout {
		s.mu.Unlock()
		metrics.RecordDedupJoin(method)
		s.logger.Debug("Joining pending request", zap.String("key", key))
		return s.wait(ctx, p)
	}
	// execute stores the body before leaving the pending map, so a call that
	// finished since the first lookup is visible here
	if !o.SkipCache {
		if resp, ok := s.lookup(key, method); ok {
			s.mu.Unlock()
			return resp, nil
		}
	}
	p := &pendingRequest{
		done:       make(chan struct{}),
		startedAt:  s.clock.Now(),
		generation: s.generation,
	}
	s.pending[key] = p
	s.mu.Unlock()

	o.Method = method
	go s.execute(context.WithoutCancel(ctx), key, url, o, p)

	return s.wait(ctx, p)
}

// lookup serves a valid entry. Expired entries are left for Purge.
func (s *CacheService) lookup(key, method string) (*models.Response, bool) {
	entry, found := s.store.Get(key)
	if !found || entry.IsExpired(s.clock.Now()) {
		return nil, false
	}
	metrics.RecordCacheHit(method)
	s.logger.Debug("Cache hit", zap.String("key", key))
	return models.NewCachedResponse(entry.Data), true
}

func (s *CacheService) wait(ctx context.Context, p *pendingRequest) (*models.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute performs the upstream call, caches a successful body and releases the
// pending slot before publishing the outcome
func (s *CacheService) execute(ctx context.Context, key, url string, opts models.FetchOptions, p *pendingRequest) {
	resp, err := s.roundTrip(ctx, url, opts)

	if err == nil && !opts.SkipCache {
		s.storeResponse(key, resp.Body, opts.TTL, p.generation)
	}

	s.mu.Lock()
	if s.pending[key] == p {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	p.resp, p.err = resp, err
	close(p.done)
}

func (s *CacheService) roundTrip(ctx context.Context, url string, opts models.FetchOptions) (*models.Response, error) {
	var body io.Reader = http.NoBody
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, &apierror.TransportError{Op: "Request", Err: err}
	}
	if opts.Header != nil {
		req.Header = opts.Header.Clone()
	}

	observe := metrics.TimeUpstreamRequest(opts.Method)

	httpResp, err := s.transport.Do(req)
	if err != nil {
		observe("transport_error")
		s.logger.Warn("Upstream request failed", zap.String("method", opts.Method), zap.String("url", url), zap.Error(err))
		return nil, &apierror.TransportError{Op: "Request", Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		observe("transport_error")
		return nil, &apierror.TransportError{Op: "Request", Err: fmt.Errorf("reading response body: %w", err)}
	}

	resp := &models.Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
	}

	if !resp.OK() {
		observe("status_error")
		s.logger.Warn("Upstream returned non-success status",
			zap.String("method", opts.Method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, &apierror.UpstreamStatusError{
			Op:         "Request",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	observe("success")
	return resp, nil
}

// storeResponse caches body when it is valid JSON. Failures are logged and
// counted, never returned.
func (s *CacheService) storeResponse(key string, body []byte, ttl time.Duration, generation uint64) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	var data json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		s.recordCacheWriteError(&apierror.CacheWriteError{Key: key, Err: err})
		return
	}

	s.mu.Lock()
	stale := generation != s.generation
	s.mu.Unlock()
	if stale {
		return
	}

	s.store.Set(key, &models.CacheEntry{
		Data:      data,
		CreatedAt: s.clock.Now(),
		TTL:       ttl,
	})
}

func (s *CacheService) recordCacheWriteError(err *apierror.CacheWriteError) {
	s.logger.Debug("Response not cached", zap.String("key", err.Key), zap.Error(err.Err))
	metrics.RecordCacheError("service", string(apierror.KindCacheWrite))
}

// Cleanup removes expired cache entries and pending requests older than the join window
func (s *CacheService) Cleanup() models.CleanupResult {
	now := s.clock.Now()
	result := models.CleanupResult{
		ExpiredEntries: s.store.Purge(now),
	}

	s.mu.Lock()
	for key, p := range s.pending {
		if now.Sub(p.startedAt) >= s.pendingTimeout {
			delete(s.pending, key)
			result.StalePending++
		}
	}
	s.mu.Unlock()

	metrics.RecordCleanup(result.ExpiredEntries, result.StalePending)
	s.Stats()

	if result.ExpiredEntries > 0 || result.StalePending > 0 {
		s.logger.Debug("Cache cleanup",
			zap.Int("expired_entries", result.ExpiredEntries),
			zap.Int("stale_pending", result.StalePending))
	}
	return result
}

// Clear empties the cache and forgets every pending request.
// Calls still in flight complete for their waiters but are not cached.
func (s *CacheService) Clear() {
	s.mu.Lock()
	s.pending = make(map[string]*pendingRequest)
	s.generation++
	s.mu.Unlock()

	s.store.Clear()
	s.logger.Info("Cache cleared")
	s.Stats()
}

// Stats returns the cache and pending map sizes
func (s *CacheService) Stats() models.Stats {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()

	stats := models.Stats{
		CacheSize:       s.store.Len(),
		PendingRequests: pending,
	}
	metrics.UpdateCacheStats(stats.CacheSize, stats.PendingRequests)
	return stats
}

// Close stops the periodic cleanup
func (s *CacheService) Close() {
	s.cleanupScheduler.Stop()
}
