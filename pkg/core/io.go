package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// DumpStats reports the result of a Dump
type DumpStats struct {
	TotalRecords int `json:"total_records"`
}

// Dump writes every record as one JSON object per line, in insertion order
func (s *SQLiteStore) Dump(ctx context.Context, w io.Writer) (*DumpStats, error) {
	stats := &DumpStats{}
	encoder := json.NewEncoder(w)
	err := s.List(ctx, func(rec *Record) error {
		if err := encoder.Encode(rec.JSON()); err != nil {
			return wrapError("dump", fmt.Errorf("failed to encode: %w", err))
		}
		stats.TotalRecords++
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Backup writes a consistent copy of the database to path. The target file
// must not exist.
func (s *SQLiteStore) Backup(ctx context.Context, path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.pool(ctx)
	if err != nil {
		return wrapError("backup", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return wrapError("backup", fmt.Errorf("failed to create backup: %w", err))
	}

	s.logger.Info("backup written", "path", path)
	return nil
}
