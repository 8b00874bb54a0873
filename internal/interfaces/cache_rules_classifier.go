package interfaces

import "fhir-gateway/internal/models"

//go:generate mockgen -package=mock -source=cache_rules_classifier.go -destination=mock/cache_rules_classifier.go

// CacheRulesClassifier decides how reads of a resource type are cached
type CacheRulesClassifier interface {
	// Classify returns the TTL and cache type for resourceType; CacheTypeNone disables caching
	Classify(resourceType string) models.CacheInfo
}
