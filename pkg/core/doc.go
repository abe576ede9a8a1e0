// Package core stores model inference outputs in SQLite.
//
// A Record holds five typed fields named by the closed FieldName registry:
// identity, timestamp, text, token ids and per-token scores. The registry
// drives the table schema, the insert column order and the single-field
// lookup, so a FieldName is also the column name and the external query key.
//
// # Storage
//
//   - SQLiteStore: owns the connection pool, opened once on first use.
//   - Insert appends a row; the system never updates or deletes records.
//   - QueryByField looks up the first row matching one field, binding the
//     value as a parameter.
//   - Token ids and scores are stored as length-prefixed little-endian blobs,
//     optionally LZ4 or ZSTD compressed.
//
// # Top-K
//
// TopK ranks the parallel token id and score sequences of a record by score,
// keeping original order among equal scores.
package core
