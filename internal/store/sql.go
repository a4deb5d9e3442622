package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/notebook/internal/common"
	"github.com/dmitrijs2005/notebook/internal/dbx"
	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/store/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// now is the store clock; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// sqlOpen is a seam for tests that need Open to fail.
var sqlOpen = sql.Open

var ErrClosed = errors.New("store is closed")

// gooseMu serialises goose's package-level dialect/FS state.
var gooseMu sync.Mutex

type queries struct {
	selectCreated string
	upsert        string
	load          string
	remove        string
	keys          string
	items         string
	itemsByRange  string
	clear         string
}

func newQueries(d dbx.Dialect) queries {
	const cols = `key, payload, created_at, updated_at`
	// exact, case-sensitive prefix match on both engines; sqlite's LIKE
	// ignores ASCII case
	const hasPrefix = `substr(key, 1, length(CAST(? AS TEXT))) = CAST(? AS TEXT)`
	return queries{
		selectCreated: d.Rebind(`SELECT created_at FROM records WHERE key = ?`),
		upsert: d.Rebind(`
			INSERT INTO records (key, payload, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				payload = excluded.payload,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at`),
		load:         d.Rebind(`SELECT payload FROM records WHERE key = ?`),
		remove:       d.Rebind(`DELETE FROM records WHERE key = ?`),
		keys:         d.Rebind(`SELECT key FROM records WHERE ` + hasPrefix + ` ORDER BY key`),
		items:        d.Rebind(`SELECT ` + cols + ` FROM records WHERE ` + hasPrefix + ` ORDER BY key`),
		itemsByRange: d.Rebind(`SELECT ` + cols + ` FROM records WHERE updated_at >= ? AND updated_at <= ? ORDER BY updated_at, key`),
		clear:        `DELETE FROM records`,
	}
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	mu      sync.Mutex
	db      *sql.DB
	driver  string
	dsn     string
	dialect dbx.Dialect
	ownsDB  bool

	q        queries
	attempts int
	backoff  time.Duration
	log      logging.Logger
}

type Option func(*SQLStore)

// WithRetry sets the number of attempts per save and the base backoff;
// the wait before the n-th retry is n*backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *SQLStore) {
		if attempts < 1 {
			attempts = 1
		}
		s.attempts = attempts
		s.backoff = backoff
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *SQLStore) { s.log = l }
}

// New returns a store that opens driver/dsn on first use and migrates the
// schema. Supported drivers are "sqlite" and "pgx".
func New(driver, dsn string, opts ...Option) (*SQLStore, error) {
	dialect, err := dbx.DialectForDriver(driver)
	if err != nil {
		return nil, err
	}
	s := newSQLStore(dialect, opts)
	s.driver = driver
	s.dsn = dsn
	s.ownsDB = true
	return s, nil
}

// NewWithDB wraps an already opened database whose schema is in place.
// The caller keeps ownership of db.
func NewWithDB(db *sql.DB, dialect dbx.Dialect, opts ...Option) *SQLStore {
	s := newSQLStore(dialect, opts)
	s.db = db
	return s
}

func newSQLStore(dialect dbx.Dialect, opts []Option) *SQLStore {
	s := &SQLStore{
		dialect:  dialect,
		q:        newQueries(dialect),
		attempts: 3,
		backoff:  100 * time.Millisecond,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if !s.ownsDB {
		return nil, ErrClosed
	}

	db, err := sqlOpen(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if s.dialect == dbx.DialectSQLite {
		// one connection: keeps :memory: databases shared and writes serial
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	if err := RunMigrations(ctx, db, s.dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	s.log.Debug(ctx, "store opened", "driver", s.driver)
	return db, nil
}

// RunMigrations applies the embedded schema migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, key string, payload []byte) error {
	attempts := 0
	err := withRetry(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
		attempts++
		err := s.saveOnce(ctx, key, payload)
		if err != nil && attempts < s.attempts {
			s.log.Warn(ctx, "save attempt failed", "key", key, "attempt", attempts, "err", err)
		}
		return err
	})
	if err != nil {
		return &common.PersistenceError{Op: "save", Key: key, Attempts: attempts, Err: err}
	}
	return nil
}

func (s *SQLStore) saveOnce(ctx context.Context, key string, payload []byte) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ts := now().UnixNano()
		created := ts

		err := tx.QueryRowContext(ctx, s.q.selectCreated, key).Scan(&created)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read record[%s]: %w", key, err)
		}

		if _, err := tx.ExecContext(ctx, s.q.upsert, key, string(payload), created, ts); err != nil {
			return fmt.Errorf("failed to write record[%s]: %w", key, err)
		}
		return nil
	})
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var payload string
	err = db.QueryRowContext(ctx, s.q.load, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record[%s]: %w", key, err)
	}
	return []byte(payload), nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	db, err := s.conn(ctx)
	if err == nil {
		_, err = db.ExecContext(ctx, s.q.remove, key)
	}
	if err != nil {
		return &common.PersistenceError{Op: "delete", Key: key, Attempts: 1, Err: err}
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err == nil {
		_, err = db.ExecContext(ctx, s.q.clear)
	}
	if err != nil {
		return &common.PersistenceError{Op: "clear", Attempts: 1, Err: err}
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, s.q.keys, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}

func (s *SQLStore) Items(ctx context.Context, prefix string) ([]Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return s.queryRecords(ctx, db, s.q.items, prefix, prefix)
}

func (s *SQLStore) ItemsByDateRange(ctx context.Context, start, end time.Time) ([]Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return s.queryRecords(ctx, db, s.q.itemsByRange, start.UnixNano(), end.UnixNano())
}

func (s *SQLStore) Info(ctx context.Context, prefix string) (Info, error) {
	records, err := s.Items(ctx, prefix)
	if err != nil {
		return Info{}, err
	}
	return infoOf(records)
}

func (s *SQLStore) queryRecords(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			r                  Record
			payload            string
			created, updatedAt int64
		)
		if err := rows.Scan(&r.Key, &payload, &created, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Payload = []byte(payload)
		r.CreatedAt = time.Unix(0, created).UTC()
		r.UpdatedAt = time.Unix(0, updatedAt).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// Close releases the database if the store opened it. A store created with
// New reopens on the next call; one created with NewWithDB stays closed.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	if !s.ownsDB {
		return nil
	}
	return db.Close()
}
