package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/notebook/internal/flagx"
	"github.com/dmitrijs2005/notebook/internal/timex"
)

// FileConfig is the on-disk shape of the configuration. Zero values mean
// "not set" and leave the runtime Config untouched.
type FileConfig struct {
	DatabaseDriver   string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN      string         `json:"database_dsn" yaml:"database_dsn"`
	ContentDebounce  timex.Duration `json:"content_debounce" yaml:"content_debounce"`
	TitleDebounce    timex.Duration `json:"title_debounce" yaml:"title_debounce"`
	DeletedMarkerTTL timex.Duration `json:"deleted_marker_ttl" yaml:"deleted_marker_ttl"`
	SaveAttempts     int            `json:"save_attempts" yaml:"save_attempts"`
	SaveBackoff      timex.Duration `json:"save_backoff" yaml:"save_backoff"`
	LogLevel         string         `json:"log_level" yaml:"log_level"`
	LogFormat        string         `json:"log_format" yaml:"log_format"`
	ExportDir        string         `json:"export_dir" yaml:"export_dir"`
	S3               FileS3Config   `json:"s3" yaml:"s3"`
}

type FileS3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
}

// parseFile overlays cfg with values loaded from the file named by -c or
// -config. Read or decode errors panic; the caller decides whether to recover.
func parseFile(cfg *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc, err := decodeFile(path, data)
	if err != nil {
		panic(err)
	}
	fc.apply(cfg)
}

func decodeFile(path string, data []byte) (*FileConfig, error) {
	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, err
		}
	}
	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DatabaseDriver, fc.DatabaseDriver)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setDuration(&cfg.ContentDebounce, fc.ContentDebounce)
	setDuration(&cfg.TitleDebounce, fc.TitleDebounce)
	setDuration(&cfg.DeletedMarkerTTL, fc.DeletedMarkerTTL)
	if fc.SaveAttempts != 0 {
		cfg.SaveAttempts = fc.SaveAttempts
	}
	setDuration(&cfg.SaveBackoff, fc.SaveBackoff)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.ExportDir, fc.ExportDir)
	setString(&cfg.S3Bucket, fc.S3.Bucket)
	setString(&cfg.S3Region, fc.S3.Region)
	setString(&cfg.S3BaseEndpoint, fc.S3.BaseEndpoint)
	setString(&cfg.S3AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3SecretKey, fc.S3.SecretKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
