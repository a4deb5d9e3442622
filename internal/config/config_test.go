package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "notebook.db", c.DatabaseDSN)
	assert.Equal(t, time.Second, c.ContentDebounce)
	assert.Equal(t, 500*time.Millisecond, c.TitleDebounce)
	assert.Equal(t, 3, c.SaveAttempts)
	assert.Equal(t, 100*time.Millisecond, c.SaveBackoff)
	assert.False(t, c.S3Enabled())
	require.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 1500*time.Millisecond, cfg.DeletedMarkerTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{"no attempts", func(c *Config) { c.SaveAttempts = 0 }, "save attempts"},
		{"no dsn", func(c *Config) { c.DatabaseDSN = "" }, "dsn"},
		{"zero debounce", func(c *Config) { c.TitleDebounce = 0 }, "debounce"},
		{"marker shorter than debounce", func(c *Config) { c.DeletedMarkerTTL = 100 * time.Millisecond }, "deleted marker ttl"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errSub)
		})
	}
}
