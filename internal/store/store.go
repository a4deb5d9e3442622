// Package store is the durable key-value layer under the note service.
//
// A Store keeps opaque payloads under string keys together with the time the
// key was first written and the time of the latest write. It knows nothing
// about notes. The SQL implementation runs on SQLite (modernc.org/sqlite) or
// PostgreSQL (pgx), opens its database lazily on first use, applies goose
// migrations, and retries failed saves with a linear backoff before giving up
// with a *common.PersistenceError.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the capability the note service depends on.
type Store interface {
	// Save upserts payload under key. The record's CreatedAt survives
	// overwrites.
	Save(ctx context.Context, key string, payload []byte) error
	// Load returns (nil, nil) when key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Items(ctx context.Context, prefix string) ([]Record, error)
	// ItemsByDateRange returns records whose UpdatedAt lies in [start, end].
	ItemsByDateRange(ctx context.Context, start, end time.Time) ([]Record, error)
	Info(ctx context.Context, prefix string) (Info, error)
	Clear(ctx context.Context) error
	Close() error
}

// Record is the persisted envelope around a payload.
type Record struct {
	Key       string
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type recordJSON struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MarshalJSON embeds the payload as JSON when it is valid JSON and as a
// string otherwise.
func (r Record) MarshalJSON() ([]byte, error) {
	data := json.RawMessage(r.Payload)
	if !json.Valid(r.Payload) {
		s, err := json.Marshal(string(r.Payload))
		if err != nil {
			return nil, err
		}
		data = s
	}
	return json.Marshal(recordJSON{
		ID:        r.Key,
		Data:      data,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var rj recordJSON
	if err := json.Unmarshal(b, &rj); err != nil {
		return err
	}
	r.Key = rj.ID
	r.Payload = []byte(rj.Data)
	r.CreatedAt = rj.CreatedAt
	r.UpdatedAt = rj.UpdatedAt
	return nil
}

// Info summarises stored records. StorageSize is an estimate: the summed
// length of each record's JSON encoding.
type Info struct {
	ItemCount   int
	StorageSize int64
}

func infoOf(records []Record) (Info, error) {
	info := Info{ItemCount: len(records)}
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return Info{}, err
		}
		info.StorageSize += int64(len(b))
	}
	return info, nil
}
