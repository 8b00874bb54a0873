package cache_rules

import (
	"time"

	"fhir-gateway/internal/models"
)

// TTLDefaults maps each cache type to its TTL
type TTLDefaults map[models.CacheType]time.Duration

// CacheRulesConfig is the cache rules file
type CacheRulesConfig struct {
	TTLDefaults TTLDefaults                 `yaml:"ttl_defaults"`
	CacheRules  map[string]models.CacheType `yaml:"cache_rules"`
	// DefaultType applies to resource types without a rule; empty means standard
	DefaultType models.CacheType `yaml:"default_type"`
}
