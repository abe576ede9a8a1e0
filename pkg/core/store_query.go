package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vigilator/vigil/internal/encoding"
)

// QueryByField returns the first stored record, in insertion order, whose
// column for name equals value. Only the registry column name is placed in
// the query text.
func (s *SQLiteStore) QueryByField(ctx context.Context, name FieldName, value Storable) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !name.Valid() {
		return nil, wrapError("query", fmt.Errorf("%w: unknown field %v", ErrFieldType, name))
	}
	param, err := s.bindValue(name, value)
	if err != nil {
		return nil, wrapError("query", err)
	}

	db, err := s.pool(ctx)
	if err != nil {
		return nil, wrapError("query", err)
	}

	row := db.QueryRowContext(ctx, selectByFieldSQL(s.config.Table, name), param)
	rec, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapError("query", fmt.Errorf("%w: %s = %v", ErrNotFound, name, describe(value)))
	}
	if err != nil {
		return nil, wrapError("query", err)
	}
	return rec, nil
}

// Query is QueryByField for a typed Field.
func Query[T Storable](ctx context.Context, s *SQLiteStore, f Field[T]) (*Record, error) {
	return s.QueryByField(ctx, f.Name, f.Value)
}

// Count returns the number of stored records
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.pool(ctx)
	if err != nil {
		return 0, wrapError("count", err)
	}

	var n int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.config.Table)).Scan(&n); err != nil {
		return 0, wrapError("count", err)
	}
	return n, nil
}

// List calls fn for every stored record in insertion order and stops at
// the first error fn returns. fn must not call back into the store: an
// in-memory database has a single connection, held until List returns.
func (s *SQLiteStore) List(ctx context.Context, fn func(*Record) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.pool(ctx)
	if err != nil {
		return wrapError("list", err)
	}

	rows, err := db.QueryContext(ctx, selectAllSQL(s.config.Table))
	if err != nil {
		return wrapError("list", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return wrapError("list", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapError("list", err)
	}
	return nil
}

// All returns every stored record in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]*Record, error) {
	var records []*Record
	err := s.List(ctx, func(rec *Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row in registry column order and decodes the
// sequence columns. No partially decoded record is ever returned.
func (s *SQLiteStore) scanRecord(row rowScanner) (*Record, error) {
	var id, ts, text string
	var tokenBlob, scoreBlob []byte

	if err := row.Scan(&id, &ts, &text, &tokenBlob, &scoreBlob); err != nil {
		return nil, err
	}

	tokenIDs, err := decodeColumn[TokenIDs](s.config.Compression, FieldTokenIDs, tokenBlob)
	if err != nil {
		return nil, err
	}
	scores, err := decodeColumn[Scores](s.config.Compression, FieldScores, scoreBlob)
	if err != nil {
		return nil, err
	}

	return &Record{
		Identity:  Field[Str]{Name: FieldIdentity, Value: Str(id)},
		Timestamp: Field[Str]{Name: FieldTimestamp, Value: Str(ts)},
		Text:      Field[Str]{Name: FieldText, Value: Str(text)},
		TokenIDs:  tokenIDs,
		Scores:    scores,
	}, nil
}

func decodeColumn[T Storable, PT interface {
	*T
	FromBytes([]byte) error
}](c encoding.Compression, f FieldName, blob []byte) (Field[T], error) {
	raw, err := encoding.Decompress(c, blob)
	if err != nil {
		return Field[T]{}, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, f, err)
	}
	field, err := DecodeField[T, PT](f, raw)
	if err != nil {
		return Field[T]{}, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, f, err)
	}
	return field, nil
}

// describe shortens a value for error messages.
func describe(v Storable) string {
	switch t := v.(type) {
	case Str:
		if len(t) > 64 {
			return fmt.Sprintf("%q...", string(t[:64]))
		}
		return fmt.Sprintf("%q", string(t))
	case TokenIDs:
		return fmt.Sprintf("<%d token ids>", len(t))
	case Scores:
		return fmt.Sprintf("<%d scores>", len(t))
	}
	return fmt.Sprintf("%T", v)
}
