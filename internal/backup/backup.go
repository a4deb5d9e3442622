// Package backup exports every stored record as one JSON snapshot to a
// local directory or an S3-compatible bucket.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/store"
)

var now = func() time.Time { return time.Now().UTC() }

type Snapshot struct {
	ExportedAt time.Time      `json:"exportedAt"`
	Records    []store.Record `json:"records"`
}

// Sink stores an encoded snapshot under name and returns where it went.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

type Exporter struct {
	store store.Store
	sink  Sink
	log   logging.Logger
}

func NewExporter(st store.Store, sink Sink, log logging.Logger) *Exporter {
	return &Exporter{store: st, sink: sink, log: log}
}

func (e *Exporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	records, err := e.store.Items(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if records == nil {
		records = []store.Record{}
	}
	return &Snapshot{ExportedAt: now(), Records: records}, nil
}

// Export writes a snapshot of the whole store to the sink.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	location, err := e.sink.Write(ctx, snapshotName(snap.ExportedAt), data)
	if err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	e.log.Info(ctx, "snapshot exported", "location", location, "records", len(snap.Records))
	return location, nil
}

func snapshotName(t time.Time) string {
	return t.Format("20060102T150405.000Z") + ".json"
}
