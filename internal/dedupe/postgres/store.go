// Package postgres implements a Postgres-backed dedupe store.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS processed_keys (key TEXT PRIMARY KEY)`
	selectKeysSQL  = `SELECT key FROM processed_keys`
	insertKeySQL   = `INSERT INTO processed_keys (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store keeps the key set in memory for O(1) lookup and batches unflushed
// keys for the next Persist call.
type Store struct {
	pool Pool

	mu      sync.Mutex
	keys    map[string]struct{}
	pending []string
}

// New connects to Postgres and prepares the store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool)
}

// NewWithPool constructs a store from an existing pool (primarily for tests).
func NewWithPool(pool Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{
		pool: pool,
		keys: make(map[string]struct{}),
	}, nil
}

// Load ensures the table exists and reads all persisted keys.
func (s *Store) Load(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ensure dedupe table: %w", err)
	}
	rows, err := s.pool.Query(ctx, selectKeysSQL)
	if err != nil {
		return fmt.Errorf("load dedupe keys: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("scan dedupe key: %w", err)
		}
		s.keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate dedupe keys: %w", err)
	}
	return nil
}

// TryAdd inserts the key under the lock, reporting whether it was new. The
// key is queued for the next Persist.
func (s *Store) TryAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.keys[key]; seen {
		return false
	}
	s.keys[key] = struct{}{}
	s.pending = append(s.pending, key)
	return true
}

// Persist inserts all keys added since the previous flush. Keys that fail to
// insert stay queued so the next flush retries them.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for i, key := range pending {
		if _, err := s.pool.Exec(ctx, insertKeySQL, key); err != nil {
			s.mu.Lock()
			s.pending = append(s.pending, pending[i:]...)
			s.mu.Unlock()
			return fmt.Errorf("persist dedupe key: %w", err)
		}
	}
	return nil
}

// Size reports the number of known keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
