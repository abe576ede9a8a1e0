package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the layout of Record timestamps.
const TimestampLayout = time.RFC3339Nano

// Record is one persisted model output.
type Record struct {
	Identity  Field[Str]
	Timestamp Field[Str]
	Text      Field[Str]
	TokenIDs  Field[TokenIDs]
	Scores    Field[Scores]
}

// NewRecord creates a Record with a fresh identity and the current time.
// The slices are copied.
func NewRecord(text string, tokenIDs []uint32, scores []float32) *Record {
	return &Record{
		Identity:  Field[Str]{Name: FieldIdentity, Value: Str(uuid.New().String())},
		Timestamp: Field[Str]{Name: FieldTimestamp, Value: Str(time.Now().UTC().Format(TimestampLayout))},
		Text:      Field[Str]{Name: FieldText, Value: Str(text)},
		TokenIDs:  Field[TokenIDs]{Name: FieldTokenIDs, Value: append(TokenIDs{}, tokenIDs...)},
		Scores:    Field[Scores]{Name: FieldScores, Value: append(Scores{}, scores...)},
	}
}

// ID returns the record identity.
func (r *Record) ID() string { return string(r.Identity.Value) }

// Time parses the record timestamp.
func (r *Record) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, string(r.Timestamp.Value))
}

// Validate checks the system-generated fields.
func (r *Record) Validate() error {
	if _, err := uuid.Parse(r.ID()); err != nil {
		return fmt.Errorf("identity %q: %w", r.Identity.Value, err)
	}
	if _, err := r.Time(); err != nil {
		return fmt.Errorf("timestamp %q: %w", r.Timestamp.Value, err)
	}
	return nil
}

// value returns the stored value of f.
func (r *Record) value(f FieldName) Storable {
	switch f {
	case FieldIdentity:
		return r.Identity.Value
	case FieldTimestamp:
		return r.Timestamp.Value
	case FieldText:
		return r.Text.Value
	case FieldTokenIDs:
		return r.TokenIDs.Value
	case FieldScores:
		return r.Scores.Value
	}
	return nil
}

// Tuple returns the record as (uuid, timestamp, text, token ids, scores).
func (r *Record) Tuple() (string, string, string, []uint32, []float32) {
	return string(r.Identity.Value), string(r.Timestamp.Value), string(r.Text.Value),
		[]uint32(r.TokenIDs.Value), []float32(r.Scores.Value)
}

// TopK returns the k highest-scoring tokens of the record.
func (r *Record) TopK(k int) ([]TokenScore, error) {
	return TopK(r.TokenIDs.Value, r.Scores.Value, k)
}

// RecordJSON is the exported JSON shape of a Record.
type RecordJSON struct {
	UUID      string    `json:"uuid"`
	Timestamp string    `json:"timestamp"`
	Text      string    `json:"text"`
	TokenIDs  []uint32  `json:"token_ids"`
	Logits    []float32 `json:"logits"`
}

// JSON converts the record to its exported shape.
func (r *Record) JSON() RecordJSON {
	id, ts, text, ids, scores := r.Tuple()
	return RecordJSON{UUID: id, Timestamp: ts, Text: text, TokenIDs: ids, Logits: scores}
}
