package cache_rules

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fhir-gateway/internal/models"
)

func TestNewRulesConfig_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewRulesConfig(nil, nil) })
}

func TestGetTTLForCacheType(t *testing.T) {
	rc := NewRulesConfig(&CacheRulesConfig{
		TTLDefaults: TTLDefaults{models.CacheTypeStandard: time.Minute},
	}, nil)

	assert.Equal(t, time.Minute, rc.GetTTLForCacheType(models.CacheTypeStandard))
	assert.Equal(t, 30*time.Minute, rc.GetTTLForCacheType(models.CacheTypeStable))
	assert.Equal(t, 30*time.Second, rc.GetTTLForCacheType(models.CacheTypeVolatile))
	assert.Equal(t, time.Duration(0), rc.GetTTLForCacheType(models.CacheTypeNone))
	assert.Equal(t, time.Duration(0), rc.GetTTLForCacheType("unknown"))
}

func TestGetAllResources(t *testing.T) {
	rc := NewRulesConfig(&CacheRulesConfig{
		CacheRules: map[string]models.CacheType{
			"Patient":     models.CacheTypeStable,
			"Appointment": models.CacheTypeVolatile,
		},
	}, nil)

	resources := rc.GetAllResources()
	sort.Strings(resources)
	assert.Equal(t, []string{"Appointment", "Patient"}, resources)
}
