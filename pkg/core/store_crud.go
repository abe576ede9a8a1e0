package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vigilator/vigil/internal/encoding"
)

// Insert appends r as a new row. The table is created first if needed.
// Values are bound positionally in registry order.
func (s *SQLiteStore) Insert(ctx context.Context, r *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r == nil {
		return wrapError("insert", errors.New("nil record"))
	}

	db, err := s.pool(ctx)
	if err != nil {
		return wrapError("insert", err)
	}
	if err := createTable(ctx, db, s.config.Table); err != nil {
		return wrapError("insert", err)
	}

	if len(r.TokenIDs.Value) != len(r.Scores.Value) {
		s.logger.Warn("storing record with unequal sequence lengths",
			"uuid", r.ID(), "token_ids", len(r.TokenIDs.Value), "scores", len(r.Scores.Value))
	}

	names := AllFieldNames()
	args := make([]any, len(names))
	for i, f := range names {
		args[i], err = s.bindValue(f, r.value(f))
		if err != nil {
			return wrapError("insert", err)
		}
	}

	if _, err := db.ExecContext(ctx, insertSQL(s.config.Table), args...); err != nil {
		return wrapError("insert", fmt.Errorf("failed to insert record: %w", err))
	}

	s.logger.Debug("record inserted", "uuid", r.ID())
	return nil
}

// bindValue converts v to the parameter stored in f's column.
func (s *SQLiteStore) bindValue(f FieldName, v Storable) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s has no value", ErrFieldType, f)
	}
	if err := CheckValue(f, v); err != nil {
		return nil, err
	}
	if f.Kind() != KindBlob {
		return v.ToDBParameter()
	}

	raw, err := v.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	packed, err := encoding.Compress(s.config.Compression, raw)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", f, err)
	}
	return packed, nil
}
