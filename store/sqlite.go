package store

import (
	"database/sql"
	"fmt"
	"sync"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the local cache. Reads go through an optional in-memory Cache.
// Writers hold mu exclusively so a read that missed the cache cannot fill it
// with a row a concurrent write has already replaced.
type SQLite struct {
	db    *sql.DB
	cache *Cache
	mu    sync.RWMutex
}

func NewSQLite(path string, cache *Cache) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db, cache: cache}, nil
}

func (s *SQLite) Get(key string) (Entry, bool, error) {
	if s.cache != nil {
		if e, ok := s.cache.Get(key); ok {
			return e, true, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	err := s.db.QueryRow(`SELECT value, updated_at FROM entries WHERE key = ?`, key).
		Scan(&e.Value, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	if s.cache != nil {
		s.cache.Set(key, e)
	}
	return e, true, nil
}

func (s *SQLite) Put(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, e.Value, e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(key)
		s.cache.Set(key, e)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM entries WHERE key = ?`, key); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(key)
	}
	return nil
}

// Keys lists stored keys starting with prefix, in key order.
func (s *SQLite) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT key FROM entries
		WHERE substr(key, 1, ?) = ?
		ORDER BY key ASC`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}
