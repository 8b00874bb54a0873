package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheType is the caching class of a FHIR resource type
type CacheType string

const (
	CacheTypeStable   CacheType = "stable"
	CacheTypeStandard CacheType = "standard"
	CacheTypeVolatile CacheType = "volatile"
	CacheTypeNone     CacheType = "none"
)

// UnmarshalYAML implements custom YAML unmarshaling for CacheType
func (c *CacheType) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	switch str {
	case "stable", "standard", "volatile", "none":
		*c = CacheType(str)
		return nil
	default:
		return fmt.Errorf("invalid cache type '%s': must be one of 'stable', 'standard', 'volatile', 'none'", str)
	}
}

// CacheInfo is the caching decision for one resource type
type CacheInfo struct {
	TTL       time.Duration `json:"ttl"`
	CacheType CacheType     `json:"cache_type"`
}
