package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store defines the storage operations on model output records
type Store interface {
	// Init opens the pool and creates the table if absent
	Init(ctx context.Context) error

	// Insert appends a record
	Insert(ctx context.Context, r *Record) error

	// QueryByField returns the first record whose field equals value
	QueryByField(ctx context.Context, name FieldName, value Storable) (*Record, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)

	// Close releases the pool
	Close() error
}

// SQLiteStore implements Store on top of SQLite.
//
// The connection pool is opened lazily by the first operation that needs it
// and exactly once per store, however many callers race on first use.
type SQLiteStore struct {
	config Config
	logger Logger

	mu     sync.RWMutex
	closed bool

	poolOnce sync.Once
	db       *sql.DB
	poolErr  error
	opens    atomic.Int32
}

var _ Store = (*SQLiteStore)(nil)

// New creates a store for the database at path with default settings
func New(path string) (*SQLiteStore, error) {
	config := DefaultConfig()
	config.Path = path
	return NewWithConfig(config)
}

// NewWithConfig creates a store with a custom configuration. No connection
// is made until the first operation.
func NewWithConfig(config Config) (*SQLiteStore, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError("init", err)
	}
	return &SQLiteStore{
		config: config,
		logger: config.Logger.With("table", config.Table),
	}, nil
}

// Config returns the effective configuration
func (s *SQLiteStore) Config() Config {
	return s.config
}

// pool returns the shared *sql.DB, opening it on first use. Callers must
// hold s.mu for reading. The open ignores cancellation of the caller that
// triggers it.
func (s *SQLiteStore) pool(ctx context.Context) (*sql.DB, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	s.poolOnce.Do(func() {
		s.db, s.poolErr = s.openPool(context.WithoutCancel(ctx))
	})
	return s.db, s.poolErr
}

func (s *SQLiteStore) openPool(ctx context.Context) (*sql.DB, error) {
	s.opens.Add(1)

	db, err := sql.Open("sqlite", s.config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if s.config.inMemory() {
		// Every connection to :memory: is a separate database; pin one.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(s.config.MaxOpenConns)
		db.SetMaxIdleConns(min(10, s.config.MaxOpenConns))
		db.SetConnMaxLifetime(2 * time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := createTable(ctx, db, s.config.Table); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("database initialized", "path", s.config.Path, "compression", s.config.Compression)
	return db, nil
}

// GetDB returns the underlying pool, opening it if needed
func (s *SQLiteStore) GetDB(ctx context.Context) (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.pool(ctx)
	return db, wrapError("get_db", err)
}
