// Package config loads runtime configuration for the notebook.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-driver string            database/sql driver: sqlite or pgx
//	-dsn string               data source name (file path for sqlite)
//	-content-debounce dur     idle time before editor content is saved
//	-title-debounce dur       idle time before a title edit is saved
//	-save-attempts int        attempts per save before giving up
//	-log-level string         debug, info, warn or error
//	-log-format string        text or json
//	-export-dir string        directory for file backups
//	-s3-bucket string         bucket for backups; empty keeps them local
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "1s" or
// integer nanoseconds. Keys absent from the file keep their earlier value:
//
//	{
//	  "database_driver": "sqlite",
//	  "database_dsn": "notes.db",
//	  "content_debounce": "1s",
//	  "title_debounce": "500ms",
//	  "s3": {"bucket": "notebook-backups", "region": "eu-west-1"}
//	}
package config
