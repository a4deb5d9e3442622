package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/notebook/internal/flagx"
)

var knownFlags = []string{
	"-driver", "-dsn",
	"-content-debounce", "-title-debounce", "-save-attempts",
	"-log-level", "-log-format",
	"-export-dir", "-s3-bucket",
}

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs first so -c/-config and foreign flags do
// not trip the parser. Parse errors panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDriver, "driver", cfg.DatabaseDriver, "database driver (sqlite or pgx)")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "database data source name")
	fs.DurationVar(&cfg.ContentDebounce, "content-debounce", cfg.ContentDebounce, "idle time before content is saved")
	fs.DurationVar(&cfg.TitleDebounce, "title-debounce", cfg.TitleDebounce, "idle time before a title is saved")
	fs.IntVar(&cfg.SaveAttempts, "save-attempts", cfg.SaveAttempts, "attempts per save")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "directory for file backups")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket for backups")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
