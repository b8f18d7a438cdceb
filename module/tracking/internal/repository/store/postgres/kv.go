package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/store"
)

var _ store.BlobStore = (*KVStore)(nil)

type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

// EnsureSchema creates the key/value table when missing.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS tracker_kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	)
	if err != nil {
		return fmt.Errorf("create tracker_kv: %w", err)
	}
	return nil
}

// Get returns "" for a missing key.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM tracker_kv WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracker_kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
