package cache_rules

import (
	"go.uber.org/zap"

	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

// Classifier implements the CacheRulesClassifier interface
type Classifier struct {
	logger *zap.Logger
	rules  *RulesConfig
}

var _ interfaces.CacheRulesClassifier = (*Classifier)(nil)

// NewClassifier creates a new Classifier instance
func NewClassifier(logger *zap.Logger, rules *RulesConfig) *Classifier {
	return &Classifier{
		logger: logger,
		rules:  rules,
	}
}

// Classify implements CacheRulesClassifier
func (c *Classifier) Classify(resourceType string) models.CacheInfo {
	none := models.CacheInfo{TTL: 0, CacheType: models.CacheTypeNone}
	if c.rules == nil {
		return none
	}

	cacheType := c.rules.GetCacheTypeForResource(resourceType)
	if cacheType == models.CacheTypeNone {
		return none
	}

	ttl := c.rules.GetTTLForCacheType(cacheType)
	if ttl <= 0 {
		return none
	}
	return models.CacheInfo{TTL: ttl, CacheType: cacheType}
}
