package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/notebook/internal/common"
	"github.com/dmitrijs2005/notebook/internal/dbx"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New("sqlite", ":memory:", WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setClock(t *testing.T, ts time.Time) *time.Time {
	t.Helper()
	cur := ts
	orig := now
	now = func() time.Time { return cur }
	t.Cleanup(func() { now = orig })
	return &cur
}

func TestSaveAndLoad(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "note-1", []byte(`{"title":"a"}`)))

	v, err := s.Load(ctx, "note-1")
	require.NoError(t, err)
	require.Equal(t, `{"title":"a"}`, string(v))
}

func TestLoad_NotExists_ReturnsNilNil(t *testing.T) {
	s := setupStore(t)

	v, err := s.Load(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSave_PreservesCreatedAt(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := setClock(t, t1)

	require.NoError(t, s.Save(ctx, "note-1", []byte(`{"v":1}`)))

	t2 := t1.Add(time.Hour)
	*clock = t2
	require.NoError(t, s.Save(ctx, "note-1", []byte(`{"v":2}`)))

	items, err := s.Items(ctx, "note-")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].CreatedAt.Equal(t1), "createdAt must survive overwrite")
	assert.True(t, items[0].UpdatedAt.Equal(t2))
	assert.Equal(t, `{"v":2}`, string(items[0].Payload))
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "x", []byte(`1`)))
	require.NoError(t, s.Delete(ctx, "x"))

	v, err := s.Load(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, s.Delete(ctx, "x"))
}

func TestKeysAndItems_PrefixFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, k := range []string{"note-b", "note-a", "setting-theme", "note_x", "notes"} {
		require.NoError(t, s.Save(ctx, k, []byte(`{}`)))
	}

	keys, err := s.Keys(ctx, "note-")
	require.NoError(t, err)
	assert.Equal(t, []string{"note-a", "note-b"}, keys)

	underscore, err := s.Keys(ctx, "note_")
	require.NoError(t, err)
	assert.Equal(t, []string{"note_x"}, underscore, "wildcard characters in the prefix are literal")

	all, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	items, err := s.Items(ctx, "setting-")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "setting-theme", items[0].Key)
}

func TestItemsByDateRange_InclusiveBounds(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := setClock(t, base)

	for i, k := range []string{"a", "b", "c", "d"} {
		*clock = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Save(ctx, k, []byte(`{}`)))
	}

	got, err := s.ItemsByDateRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, "c", got[1].Key)
}

func TestClear_RemovesAllKeys(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", []byte(`1`)))
	require.NoError(t, s.Save(ctx, "b", []byte(`2`)))
	require.NoError(t, s.Clear(ctx))

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestInfo_SumsRecordJSONLength(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	setClock(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	require.NoError(t, s.Save(ctx, "note-1", []byte(`{"title":"x"}`)))
	require.NoError(t, s.Save(ctx, "note-2", []byte(`{"title":"yy"}`)))
	require.NoError(t, s.Save(ctx, "other", []byte(`{}`)))

	items, err := s.Items(ctx, "note-")
	require.NoError(t, err)

	var want int64
	for _, r := range items {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		want += int64(len(b))
	}

	info, err := s.Info(ctx, "note-")
	require.NoError(t, err)
	assert.Equal(t, 2, info.ItemCount)
	assert.Equal(t, want, info.StorageSize)
}

func TestRecord_JSONShape(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	b, err := json.Marshal(Record{Key: "note-1", Payload: []byte(`{"a": 1}`), CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"note-1","data":{"a":1},"createdAt":"2025-01-02T03:04:05Z","updatedAt":"2025-01-02T03:04:05Z"}`, string(b))

	b, err = json.Marshal(Record{Key: "raw", Payload: []byte("not json"), CreatedAt: ts, UpdatedAt: ts})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"data":"not json"`)

	var r Record
	require.NoError(t, json.Unmarshal(b, &r))
	assert.Equal(t, "raw", r.Key)
}

func TestLazyOpen(t *testing.T) {
	calls := 0
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		calls++
		return orig(driver, dsn)
	}
	t.Cleanup(func() { sqlOpen = orig })

	s, err := New("sqlite", ":memory:")
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "constructor must not touch the database")

	ctx := context.Background()
	_, err = s.Keys(ctx, "")
	require.NoError(t, err)
	_, err = s.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.Keys(ctx, "")
	require.NoError(t, err, "store reopens after close")
	assert.Equal(t, 2, calls)
	require.NoError(t, s.Close())
}

func TestOpenFailure(t *testing.T) {
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("no disk") }
	t.Cleanup(func() { sqlOpen = orig })

	s, err := New("sqlite", "x.db", WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "k")
	require.Error(t, err)

	err = s.Save(context.Background(), "k", []byte(`{}`))
	require.ErrorIs(t, err, common.ErrPersistence)

	var pe *common.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Attempts)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New("mysql", "dsn")
	require.Error(t, err)
}

func TestNewWithDB_StaysClosed(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db, dbx.DialectSQLite))

	s := NewWithDB(db, dbx.DialectSQLite)
	require.NoError(t, s.Save(context.Background(), "k", []byte(`{}`)))
	require.NoError(t, s.Close())

	_, err = s.Load(context.Background(), "k")
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, db.Ping(), "caller still owns the handle")
}

func TestQueries_PostgresPlaceholders(t *testing.T) {
	q := newQueries(dbx.DialectPostgres)
	assert.Contains(t, q.upsert, "VALUES ($1, $2, $3, $4)")
	assert.Contains(t, q.itemsByRange, "updated_at >= $1 AND updated_at <= $2")
	assert.Contains(t, q.keys, `substr(key, 1, length(CAST($1 AS TEXT))) = CAST($2 AS TEXT)`)
}

func TestKeysAndItems_PrefixIsCaseSensitive(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, k := range []string{"note-a", "NOTE-b", "Note-c", "note%d"} {
		require.NoError(t, s.Save(ctx, k, []byte(`{}`)))
	}

	keys, err := s.Keys(ctx, "note-")
	require.NoError(t, err)
	assert.Equal(t, []string{"note-a"}, keys)

	items, err := s.Items(ctx, "note-")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "note-a", items[0].Key)

	info, err := s.Info(ctx, "note-")
	require.NoError(t, err)
	assert.Equal(t, 1, info.ItemCount)

	pct, err := s.Keys(ctx, "note%")
	require.NoError(t, err)
	assert.Equal(t, []string{"note%d"}, pct)
}
