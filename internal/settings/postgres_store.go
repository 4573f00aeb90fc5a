package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

const (
	pgSettingsKey = "pricing"

	createTableSQL = `CREATE TABLE IF NOT EXISTS app_settings (
	key        text PRIMARY KEY,
	value      jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`
	selectSQL = `SELECT value FROM app_settings WHERE key = $1`
	upsertSQL = `INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps the settings in the app_settings table under key "pricing".
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps db, typically a *pgxpool.Pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates app_settings when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create app_settings: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context) (pricing.Settings, bool, error) {
	if s == nil || s.db == nil {
		return pricing.Settings{}, false, nil
	}
	var raw []byte
	if err := s.db.QueryRow(ctx, selectSQL, pgSettingsKey).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Settings{}, false, nil
		}
		return pricing.Settings{}, false, fmt.Errorf("select settings: %w", err)
	}
	var out pricing.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		return pricing.Settings{}, false, fmt.Errorf("decode settings: %w", err)
	}
	return out, true, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, v pricing.Settings) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertSQL, pgSettingsKey, data); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
