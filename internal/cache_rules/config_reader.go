package cache_rules

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadCacheRulesConfig loads cache rules from a YAML file
func LoadCacheRulesConfig(rulesPath string, logger *zap.Logger) (*RulesConfig, error) {
	logger.Info("Loading cache rules config", zap.String("path", rulesPath))

	file, err := os.Open(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache rules file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config CacheRulesConfig
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML cache rules: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("cache rules validation failed: %w", err)
	}

	logger.Info("Cache rules config loaded successfully", zap.Int("rules", len(config.CacheRules)))

	return NewRulesConfig(&config, logger), nil
}

func validateConfig(config *CacheRulesConfig) error {
	if len(config.CacheRules) == 0 {
		return errors.New("missing cache_rules section")
	}
	for cacheType, ttl := range config.TTLDefaults {
		if ttl < 0 {
			return fmt.Errorf("ttl_defaults.%s must not be negative", cacheType)
		}
	}
	return nil
}
