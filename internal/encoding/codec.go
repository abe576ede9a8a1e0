// Package encoding holds the binary layout of the sequence columns.
//
// Both sequences share one layout: a little-endian uint32 element count
// followed by that many little-endian 4-byte elements. Token ids are written
// as uint32, scores as IEEE-754 float32 bits.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is matched by every CodecError.
var ErrMalformed = errors.New("malformed encoded value")

const (
	lengthPrefixSize = 4
	elementSize      = 4
	maxElements      = math.MaxUint32
)

// CodecError reports bytes that do not match the expected layout.
type CodecError struct {
	Kind   string // "token_ids" or "scores"
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: %s: %s", e.Kind, e.Reason)
}

// Is lets errors.Is(err, ErrMalformed) match.
func (e *CodecError) Is(target error) bool {
	return target == ErrMalformed
}

func codecErr(kind, format string, args ...any) error {
	return &CodecError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// EncodeTokenIDs encodes a token id sequence.
func EncodeTokenIDs(ids []uint32) ([]byte, error) {
	if ids == nil {
		return nil, codecErr("token_ids", "nil sequence")
	}
	if uint64(len(ids)) > maxElements {
		return nil, codecErr("token_ids", "%d elements exceeds maximum", len(ids))
	}

	buf := make([]byte, lengthPrefixSize+len(ids)*elementSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(ids)))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[lengthPrefixSize+i*elementSize:], id)
	}
	return buf, nil
}

// DecodeTokenIDs decodes bytes produced by EncodeTokenIDs.
func DecodeTokenIDs(data []byte) ([]uint32, error) {
	n, err := elementCount("token_ids", data)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(data[lengthPrefixSize+i*elementSize:])
	}
	return ids, nil
}

// EncodeScores encodes a score sequence. NaN and infinities are rejected.
func EncodeScores(scores []float32) ([]byte, error) {
	if scores == nil {
		return nil, codecErr("scores", "nil sequence")
	}
	if uint64(len(scores)) > maxElements {
		return nil, codecErr("scores", "%d elements exceeds maximum", len(scores))
	}

	buf := make([]byte, lengthPrefixSize+len(scores)*elementSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(scores)))
	for i, v := range scores {
		if !finite(v) {
			return nil, codecErr("scores", "non-finite value %v at index %d", v, i)
		}
		binary.LittleEndian.PutUint32(buf[lengthPrefixSize+i*elementSize:], math.Float32bits(v))
	}
	return buf, nil
}

// DecodeScores decodes bytes produced by EncodeScores.
func DecodeScores(data []byte) ([]float32, error) {
	n, err := elementCount("scores", data)
	if err != nil {
		return nil, err
	}

	scores := make([]float32, n)
	for i := range scores {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[lengthPrefixSize+i*elementSize:]))
		if !finite(v) {
			return nil, codecErr("scores", "non-finite value at index %d", i)
		}
		scores[i] = v
	}
	return scores, nil
}

// elementCount validates the length prefix against the payload size.
func elementCount(kind string, data []byte) (int, error) {
	if len(data) < lengthPrefixSize {
		return 0, codecErr(kind, "truncated length prefix (%d bytes)", len(data))
	}

	n := uint64(binary.LittleEndian.Uint32(data))
	payload := uint64(len(data) - lengthPrefixSize)
	if n*elementSize != payload {
		return 0, codecErr(kind, "declared %d elements, payload holds %d bytes", n, payload)
	}
	return int(n), nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
