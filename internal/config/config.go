package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds runtime settings for the notebook.
type Config struct {
	DatabaseDriver string
	DatabaseDSN    string

	ContentDebounce  time.Duration
	TitleDebounce    time.Duration
	DeletedMarkerTTL time.Duration

	SaveAttempts int
	SaveBackoff  time.Duration

	LogLevel  string
	LogFormat string

	ExportDir      string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "notebook.db"
	c.ContentDebounce = time.Second
	c.TitleDebounce = 500 * time.Millisecond
	c.DeletedMarkerTTL = 1500 * time.Millisecond
	c.SaveAttempts = 3
	c.SaveBackoff = 100 * time.Millisecond
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.ExportDir = "backups"
	c.S3Region = "us-east-1"
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseDriver == "" {
		errs = append(errs, errors.New("database driver is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.SaveAttempts < 1 {
		errs = append(errs, fmt.Errorf("save attempts must be at least 1, got %d", c.SaveAttempts))
	}
	if c.ContentDebounce <= 0 || c.TitleDebounce <= 0 {
		errs = append(errs, errors.New("debounce intervals must be positive"))
	}
	if c.DeletedMarkerTTL < c.ContentDebounce {
		errs = append(errs, fmt.Errorf("deleted marker ttl %s must not be shorter than content debounce %s", c.DeletedMarkerTTL, c.ContentDebounce))
	}
	return errors.Join(errs...)
}

// S3Enabled reports whether backups should go to object storage.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
