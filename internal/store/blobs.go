package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Blobs.Get for a key that was never written.
var ErrNotFound = errors.New("blob not found")

// Blobs is the "persist bytes" capability every store is built on.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Blob keys.
const (
	KeyArticles    = "articles-by-feed"
	KeyReadState   = "read-article-ids"
	KeySeenLinks   = "seen-links"
	KeyPreferences = "notification-preferences"
	KeySources     = "feed-sources"
	KeyBookmarks   = "bookmarked-article-ids"
)

// SQLiteBlobs stores blobs in a single sqlite table.
type SQLiteBlobs struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dbPath and ensures the schema.
func Open(dbPath string) (*SQLiteBlobs, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteBlobs{db: db}, nil
}

// InitSchema ensures the DB has the tables the stores need.
func InitSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blobs (
            key TEXT PRIMARY KEY,
            value BLOB NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteBlobs) Close() error {
	return s.db.Close()
}

func (s *SQLiteBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("value").From("blobs").Where(sb.Equal("key", key)).Build()
	var value []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blob %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteBlobs) Put(ctx context.Context, key string, value []byte) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	query, args := ib.ReplaceInto("blobs").
		Cols("key", "value", "updated_at").
		Values(key, value, time.Now().UTC().Format(time.RFC3339)).
		Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put blob %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteBlobs) Delete(ctx context.Context, key string) error {
	del := sqlbuilder.SQLite.NewDeleteBuilder()
	query, args := del.DeleteFrom("blobs").Where(del.Equal("key", key)).Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteBlobs) Keys(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	query, args := sb.Select("key").From("blobs").OrderBy("key").Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// MemoryBlobs is an in-process Blobs used by tests and dry runs.
// Setting FailWrites makes every Put and Delete return that error.
type MemoryBlobs struct {
	mu         sync.Mutex
	data       map[string][]byte
	writes     int
	FailWrites error
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{data: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBlobs) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

func (m *MemoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.data, key)
	m.writes++
	return nil
}

func (m *MemoryBlobs) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Writes counts successful Put and Delete calls.
func (m *MemoryBlobs) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
