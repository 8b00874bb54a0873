package cache_rules

import (
	"time"

	"go.uber.org/zap"

	"fhir-gateway/internal/models"
)

// fallbackTTLs apply to cache types missing from ttl_defaults
var fallbackTTLs = TTLDefaults{
	models.CacheTypeStable:   30 * time.Minute,
	models.CacheTypeStandard: 5 * time.Minute,
	models.CacheTypeVolatile: 30 * time.Second,
	models.CacheTypeNone:     0,
}

// RulesConfig answers TTL and cache type lookups over a CacheRulesConfig
type RulesConfig struct {
	config *CacheRulesConfig
	logger *zap.Logger
}

// NewRulesConfig creates a RulesConfig instance
func NewRulesConfig(config *CacheRulesConfig, logger *zap.Logger) *RulesConfig {
	if config == nil {
		panic("config cannot be nil")
	}
	return &RulesConfig{
		config: config,
		logger: logger,
	}
}

// GetTTLForCacheType returns the configured TTL, falling back to built-in values
func (rc *RulesConfig) GetTTLForCacheType(cacheType models.CacheType) time.Duration {
	if ttl, ok := rc.config.TTLDefaults[cacheType]; ok {
		return ttl
	}
	return fallbackTTLs[cacheType]
}

// GetCacheTypeForResource returns the rule for resourceType or the default type
func (rc *RulesConfig) GetCacheTypeForResource(resourceType string) models.CacheType {
	if resourceType == "" {
		if rc.logger != nil {
			rc.logger.Warn("Empty resource type provided, disabling cache")
		}
		return models.CacheTypeNone
	}

	if cacheType, exists := rc.config.CacheRules[resourceType]; exists {
		return cacheType
	}

	if rc.logger != nil {
		rc.logger.Debug("Resource type not found in cache rules, using default type",
			zap.String("resource_type", resourceType))
	}
	if rc.config.DefaultType != "" {
		return rc.config.DefaultType
	}
	return models.CacheTypeStandard
}

// GetAllResources returns every resource type with a rule
func (rc *RulesConfig) GetAllResources() []string {
	resources := make([]string, 0, len(rc.config.CacheRules))
	for resource := range rc.config.CacheRules {
		resources = append(resources, resource)
	}
	return resources
}
