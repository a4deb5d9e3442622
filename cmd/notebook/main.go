package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/notebook/internal/backup"
	"github.com/dmitrijs2005/notebook/internal/cli"
	"github.com/dmitrijs2005/notebook/internal/config"
	"github.com/dmitrijs2005/notebook/internal/editor"
	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/services"
	"github.com/dmitrijs2005/notebook/internal/store"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	st, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN,
		store.WithRetry(cfg.SaveAttempts, cfg.SaveBackoff),
		store.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	initSignalHandler(cancel)

	notes := services.NewNoteService(st, logger)
	binding := editor.New(ctx, notes, logger, editor.Options{
		ContentDebounce:  cfg.ContentDebounce,
		TitleDebounce:    cfg.TitleDebounce,
		DeletedMarkerTTL: cfg.DeletedMarkerTTL,
	})

	app := cli.NewApp(notes, binding, newExporter(cfg, st, logger), logger, os.Stdin, os.Stdout)
	app.Run(ctx)
}

func newExporter(cfg *config.Config, st store.Store, logger logging.Logger) *backup.Exporter {
	var sink backup.Sink = backup.FileSink{Dir: cfg.ExportDir}
	if cfg.S3Enabled() {
		sink = backup.NewS3Sink(backup.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
	}
	return backup.NewExporter(st, sink, logger)
}

func initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
