package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"fhir-gateway/internal/auth"
	"fhir-gateway/internal/cache/l1"
	"fhir-gateway/internal/cache/l2"
	"fhir-gateway/internal/cache/memory"
	"fhir-gateway/internal/cache/multi"
	"fhir-gateway/internal/cache/noop"
	"fhir-gateway/internal/cache/service"
	"fhir-gateway/internal/cache_rules"
	"fhir-gateway/internal/config"
	"fhir-gateway/internal/fhir"
	"fhir-gateway/internal/httpserver"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/session"
	"fhir-gateway/internal/upstream"
)

// CompositionRoot holds all application dependencies and releases them in Cleanup
type CompositionRoot struct {
	Config *config.Config
	Logger *zap.Logger

	// Storage
	KeyDBClient  *l2.RedisKeyDbClient // nil unless a KeyDB backend is configured
	L1Cache      *l1.BigCache
	L2Cache      *l2.KeyDBStore
	Store        interfaces.Store
	SessionStore *session.Store // nil when sessions are not persisted

	// Services
	Upstream     *http.Client
	Settings     interfaces.SettingsSource
	TokenManager *auth.TokenManager
	Provider     *auth.CredentialProvider
	CacheService *service.CacheService
	FHIRClient   *fhir.Client
	HTTPServer   *httpserver.Server
}

// NewCompositionRoot creates and wires all application dependencies.
//
// Initialization order:
// 1. Logger
// 2. Configuration
// 3. KeyDB connection, when a KeyDB backend is selected
// 4. Cache store and session store
// 5. Upstream client, token manager and credential provider
// 6. Caching client and resource client
// 7. HTTP server
func NewCompositionRoot(configPath string) (*CompositionRoot, error) {
	root := &CompositionRoot{}
	if err := root.build(configPath); err != nil {
		return nil, err
	}
	return root, nil
}

// build runs the initialization steps in order and releases whatever was
// opened when a step fails
func (r *CompositionRoot) build(configPath string) error {
	if err := r.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := r.loadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := r.initKeyDB(); err != nil {
		return fmt.Errorf("failed to connect to KeyDB: %w", err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"cache store", r.initCacheStore},
		{"session store", r.initSessionStore},
		{"authentication", r.initAuth},
		{"services", r.initServices},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			_ = r.Cleanup()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}
	return nil
}

func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	return nil
}

func (r *CompositionRoot) loadConfig(configPath string) error {
	cfg, err := config.LoadConfig(configPath, r.Logger)
	if err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

func (r *CompositionRoot) needsKeyDB() bool {
	switch r.Config.Cache.Backend {
	case "keydb", "multi":
		return true
	}
	return r.Config.Session.Backend == "keydb"
}

func (r *CompositionRoot) initKeyDB() error {
	if !r.needsKeyDB() {
		return nil
	}

	client, err := l2.NewRedisKeyDbClient(&r.Config.KeyDB, r.Logger)
	if err != nil {
		if r.Config.Session.Backend == "keydb" {
			return err
		}
		// The cache can run without its L2 tier
		r.Logger.Warn("Failed to connect to KeyDB, continuing without L2 cache", zap.Error(err))
		return nil
	}
	r.KeyDBClient = client
	return nil
}

func (r *CompositionRoot) initCacheStore() error {
	backend := r.Config.Cache.Backend

	if backend == "bigcache" || backend == "multi" {
		bc, err := l1.NewBigCache(&r.Config.BigCache, r.Logger)
		if err != nil {
			return err
		}
		r.L1Cache = bc
	}
	if (backend == "keydb" || backend == "multi") && r.KeyDBClient != nil {
		r.L2Cache = l2.NewKeyDBStore(&r.Config.KeyDB, r.KeyDBClient, r.Logger)
	}

	switch backend {
	case "memory":
		r.Store = memory.NewMemoryStore()
	case "bigcache":
		r.Store = r.L1Cache
	case "keydb":
		if r.L2Cache == nil {
			r.Store = noop.NewNoOpStore()
		} else {
			r.Store = r.L2Cache
		}
	case "multi":
		stores := []interfaces.Store{r.L1Cache}
		if r.L2Cache != nil {
			stores = append(stores, r.L2Cache)
		}
		r.Store = multi.NewMultiStore(stores, r.Config.Cache.PromoteOnHit, r.Logger)
	default:
		r.Store = noop.NewNoOpStore()
	}

	r.Logger.Info("Cache store initialized",
		zap.String("backend", backend),
		zap.Bool("l1", r.L1Cache != nil),
		zap.Bool("l2", r.L2Cache != nil))
	return nil
}

func (r *CompositionRoot) initSessionStore() error {
	var kv interfaces.KeyValue
	switch r.Config.Session.Backend {
	case "file":
		fileKV, err := session.NewFileKV(r.Config.Session.Dir)
		if err != nil {
			return err
		}
		kv = fileKV
	case "keydb":
		kv = session.NewKeyDBKV(r.KeyDBClient, r.Config.KeyDB.KeyPrefix, r.Config.KeyDB.GetReadTimeout())
	default:
		r.Settings = auth.StaticSource{Value: r.Config.Upstream.Settings}
		return nil
	}

	r.SessionStore = session.NewStore(kv, r.Logger)
	r.Settings = session.NewLayeredSource(r.Config.Upstream.Settings, r.SessionStore)
	return nil
}

func (r *CompositionRoot) initAuth() error {
	r.Upstream = upstream.NewHTTPClient(&r.Config.Upstream, nil, r.Logger)
	r.TokenManager = auth.NewTokenManager(r.Upstream, r.Logger)

	opts := []auth.ProviderOption{}
	if r.SessionStore != nil {
		opts = append(opts, auth.WithCredentialStore(r.SessionStore))
	}
	if r.Config.Session.AutoRefresh {
		opts = append(opts, auth.WithRefreshPolicy(auth.ExpiryRefresh{Skew: r.Config.Session.RefreshSkew}))
	}
	r.Provider = auth.NewCredentialProvider(r.TokenManager, r.Settings, r.Logger, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), r.Config.Upstream.Timeout)
	defer cancel()
	if err := r.Provider.Restore(ctx); err != nil {
		r.Logger.Warn("Failed to restore stored credentials", zap.Error(err))
	}
	return nil
}

func (r *CompositionRoot) initServices() error {
	var opts []fhir.Option
	if r.Config.Cache.RulesFile != "" {
		rules, err := cache_rules.LoadCacheRulesConfig(r.Config.Cache.RulesFile, r.Logger)
		if err != nil {
			return err
		}
		r.warnShortLifeWindow(rules)
		opts = append(opts, fhir.WithCacheRules(cache_rules.NewClassifier(r.Logger, rules)))
	}

	r.CacheService = service.NewCacheService(r.Store, r.Upstream, &r.Config.Cache, r.Logger)
	r.FHIRClient = fhir.NewClient(r.CacheService, r.Provider, r.Settings, &r.Config.Upstream, r.Logger, opts...)
	r.HTTPServer = httpserver.NewServer(httpserver.Services{
		Cache:    r.CacheService,
		Provider: r.Provider,
		Issuer:   r.TokenManager,
		Settings: r.Settings,
		Session:  r.SessionStore,
		FHIR:     r.FHIRClient,
	}, &r.Config.Server, r.Logger)
	return nil
}

// warnShortLifeWindow flags rule TTLs that BigCache would evict early
func (r *CompositionRoot) warnShortLifeWindow(rules *cache_rules.RulesConfig) {
	if r.L1Cache == nil {
		return
	}
	for _, resource := range rules.GetAllResources() {
		ttl := rules.GetTTLForCacheType(rules.GetCacheTypeForResource(resource))
		if ttl > r.Config.BigCache.LifeWindow {
			r.Logger.Warn("Cache rule TTL exceeds BigCache life window",
				zap.String("resource_type", resource),
				zap.Duration("ttl", ttl),
				zap.Duration("life_window", r.Config.BigCache.LifeWindow))
		}
	}
}

// Cleanup releases every opened resource; a second call only syncs the logger
func (r *CompositionRoot) Cleanup() error {
	var errs []error

	if r.CacheService != nil {
		r.CacheService.Close()
		r.CacheService = nil
	}

	if r.L1Cache != nil {
		if err := r.L1Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close L1 cache: %w", err))
		}
		r.L1Cache = nil
	}

	// The L2 store and the session store share the KeyDB client
	if r.KeyDBClient != nil {
		if err := r.KeyDBClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close KeyDB client: %w", err))
		}
		r.KeyDBClient = nil
	}

	if r.Logger != nil {
		_ = r.Logger.Sync()
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
