package core

import (
	"context"
	"database/sql"
	"fmt"
)

// Init opens the connection pool and creates the table if it does not exist.
// Calling it again is a no-op.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.pool(ctx); err != nil {
		return wrapError("init", err)
	}
	return nil
}

// EnsureTable re-runs table creation. Existing rows are untouched.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.pool(ctx)
	if err != nil {
		return wrapError("ensure_table", err)
	}
	return wrapError("ensure_table", createTable(ctx, db, s.config.Table))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func createTable(ctx context.Context, db execer, table string) error {
	if _, err := db.ExecContext(ctx, CreateTableSQL(table)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}
