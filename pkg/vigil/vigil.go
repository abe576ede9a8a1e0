// Package vigil is the entry point for code that records model outputs and
// reads them back: host bindings, the query server and the CLI.
package vigil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vigilator/vigil/pkg/core"
)

// DB is an open output store.
type DB struct {
	store *core.SQLiteStore
}

// Option configures Open.
type Option func(*core.Config)

// WithLogger sets the store logger.
func WithLogger(l core.Logger) Option {
	return func(c *core.Config) {
		c.Logger = l
	}
}

// Open creates the store and initializes its table.
func Open(ctx context.Context, config core.Config, opts ...Option) (*DB, error) {
	for _, opt := range opts {
		opt(&config)
	}

	store, err := core.NewWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return &DB{store: store}, nil
}

// NewDB wraps an existing store. The pool is opened on first use.
func NewDB(store *core.SQLiteStore) *DB {
	return &DB{store: store}
}

// Store returns the underlying store.
func (db *DB) Store() *core.SQLiteStore {
	return db.store
}

// Close closes the store.
func (db *DB) Close() error {
	return db.store.Close()
}

// StoreRecord builds a record with a fresh identity and timestamp and
// persists it.
func (db *DB) StoreRecord(ctx context.Context, text string, tokenIDs []uint32, scores []float32) (*core.Record, error) {
	rec := core.NewRecord(text, tokenIDs, scores)
	if err := db.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FetchByText returns the first record stored with text.
func (db *DB) FetchByText(ctx context.Context, text string) (*core.Record, error) {
	return db.store.QueryByField(ctx, core.FieldText, core.Str(text))
}

// FetchByID returns the record with the given identity.
func (db *DB) FetchByID(ctx context.Context, id string) (*core.Record, error) {
	return db.store.QueryByField(ctx, core.FieldIdentity, core.Str(id))
}

// FetchByField looks a record up by one field given its external name.
// Only text-valued fields can be addressed this way.
func (db *DB) FetchByField(ctx context.Context, field, value string) (*core.Record, error) {
	name, err := core.ParseFieldName(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFieldType, err)
	}
	if name.Kind() != core.KindText {
		return nil, fmt.Errorf("%w: %s is not a text field", core.ErrFieldType, name)
	}
	return db.store.QueryByField(ctx, name, core.Str(value))
}

// TopK returns the k highest-scoring tokens of rec.
func (db *DB) TopK(rec *core.Record, k int) ([]core.TokenScore, error) {
	return rec.TopK(k)
}

var defaultDB = sync.OnceValues(func() (*DB, error) {
	return Open(context.Background(), core.DefaultConfig())
})

// Default returns a process-wide in-memory DB, created by the first caller.
// Callers that can hold a handle should use Open instead.
func Default() (*DB, error) {
	return defaultDB()
}
