package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zhinian/blogstore/internal/common"
	"github.com/zhinian/blogstore/internal/dbx"
	"github.com/zhinian/blogstore/internal/server/kv/migrations"
)

// PostgresStore keeps each collection as one JSONB row in a keyed table.
// It exists for deployments that already run Postgres and do not want a
// separate Redis; the store surface is identical.
type PostgresStore struct {
	db   dbx.DBTX
	conn *sql.DB
}

// NewPostgresStore opens a connection pool and applies the embedded
// migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &PostgresStore{db: db, conn: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle (*sql.DB or *sql.Tx)
// without running migrations. Used by tests.
func NewPostgresStoreWithDB(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM kv_entries WHERE key = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv get %q: %w: %v", key, common.ErrBackendUnavailable, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value;
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("kv set %q: %w: %v", key, common.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("kv del %q: %w: %v", key, common.ErrBackendUnavailable, err)
	}
	return nil
}

// Close closes the pool when the store owns one.
func (s *PostgresStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
