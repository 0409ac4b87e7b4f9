package featureflags_test

import (
	"sync"
	"testing"

	"github.com/mautops/event-workflow/internal/config"
	"github.com/mautops/event-workflow/internal/featureflags"
	"github.com/stretchr/testify/assert"
)

func TestFlags_TenantOverride(t *testing.T) {
	flags := featureflags.New(config.FeatureConfig{
		BulkOperations: false,
		Tenants: map[string]map[string]bool{
			"acme": {"bulk_operations": true},
		},
	})

	assert.False(t, flags.IsEnabled(featureflags.BulkOperations, "globex"))
	assert.True(t, flags.IsEnabled(featureflags.BulkOperations, "ACME"))
	assert.False(t, flags.IsEnabled("unknown_flag", "acme"))
}

func TestFlags_Update(t *testing.T) {
	flags := featureflags.New(config.FeatureConfig{BulkOperations: true})
	assert.True(t, flags.IsEnabled(featureflags.BulkOperations, "t-1"))

	flags.Update(config.FeatureConfig{BulkOperations: false})
	assert.False(t, flags.IsEnabled(featureflags.BulkOperations, "t-1"))

	flags.Set(featureflags.BulkOperations, "t-1", true)
	assert.True(t, flags.IsEnabled(featureflags.BulkOperations, "t-1"))
	assert.False(t, flags.IsEnabled(featureflags.BulkOperations, "t-2"))
}

func TestFlags_ZeroValue(t *testing.T) {
	var flags featureflags.Flags
	assert.False(t, flags.IsEnabled(featureflags.BulkOperations, "t-1"))

	assert.NotPanics(t, func() {
		flags.Set(featureflags.BulkOperations, "", true)
		flags.Set(featureflags.BulkOperations, "t-2", false)
	})
	assert.True(t, flags.IsEnabled(featureflags.BulkOperations, "t-1"))
	assert.False(t, flags.IsEnabled(featureflags.BulkOperations, "t-2"))
}

func TestFlags_ConcurrentAccess(t *testing.T) {
	flags := featureflags.New(config.FeatureConfig{BulkOperations: true})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			flags.IsEnabled(featureflags.BulkOperations, "t-1")
		}()
		go func(enabled bool) {
			defer wg.Done()
			flags.Update(config.FeatureConfig{BulkOperations: enabled})
		}(i%2 == 0)
	}
	wg.Wait()
}
