package core

import (
	"fmt"

	"github.com/vigilator/vigil/internal/encoding"
)

// FieldName enumerates the storable attributes of a Record. The canonical
// name of each variant is both its column name and its external query key.
type FieldName int

const (
	FieldIdentity FieldName = iota
	FieldTimestamp
	FieldText
	FieldTokenIDs
	FieldScores
)

// fieldCount must follow the last FieldName.
const fieldCount = int(FieldScores) + 1

// AllFieldNames returns every FieldName in registry order. Schema generation
// and insert binding both follow this order.
func AllFieldNames() []FieldName {
	names := make([]FieldName, fieldCount)
	for i := range names {
		names[i] = FieldName(i)
	}
	return names
}

// String returns the canonical column name.
func (f FieldName) String() string {
	switch f {
	case FieldIdentity:
		return "uuid"
	case FieldTimestamp:
		return "timestamp"
	case FieldText:
		return "text"
	case FieldTokenIDs:
		return "token_ids"
	case FieldScores:
		return "logits"
	}
	return fmt.Sprintf("FieldName(%d)", int(f))
}

// Valid reports whether f is a registered variant.
func (f FieldName) Valid() bool {
	return f >= 0 && int(f) < fieldCount
}

// ParseFieldName maps a canonical column name back to its FieldName.
func ParseFieldName(name string) (FieldName, error) {
	for _, f := range AllFieldNames() {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// ColumnKind is how a field is laid out in storage.
type ColumnKind int

const (
	// KindText is a native string column.
	KindText ColumnKind = iota
	// KindBlob is codec output.
	KindBlob
)

// Kind returns the storage layout of the field.
func (f FieldName) Kind() ColumnKind {
	switch f {
	case FieldTokenIDs, FieldScores:
		return KindBlob
	}
	return KindText
}

// Storable is implemented by every value type a Field can hold.
// The pointer type additionally implements FromBytes.
type Storable interface {
	// ToBytes returns the binary form of the value.
	ToBytes() ([]byte, error)
	// ToDBParameter returns the value to bind to a query parameter.
	ToDBParameter() (any, error)
}

// Str is the value type of the Identity, Timestamp and Text fields.
type Str string

func (s Str) ToBytes() ([]byte, error)    { return []byte(s), nil }
func (s Str) ToDBParameter() (any, error) { return string(s), nil }

func (s *Str) FromBytes(data []byte) error {
	*s = Str(data)
	return nil
}

// TokenIDs is the value type of the TokenIDs field.
type TokenIDs []uint32

func (t TokenIDs) ToBytes() ([]byte, error) {
	return encoding.EncodeTokenIDs(t.orEmpty())
}

func (t TokenIDs) ToDBParameter() (any, error) { return t.ToBytes() }

func (t *TokenIDs) FromBytes(data []byte) error {
	ids, err := encoding.DecodeTokenIDs(data)
	if err != nil {
		return err
	}
	*t = ids
	return nil
}

func (t TokenIDs) orEmpty() []uint32 {
	if t == nil {
		return []uint32{}
	}
	return t
}

// Scores is the value type of the Scores field.
type Scores []float32

func (s Scores) ToBytes() ([]byte, error) {
	return encoding.EncodeScores(s.orEmpty())
}

func (s Scores) ToDBParameter() (any, error) { return s.ToBytes() }

func (s *Scores) FromBytes(data []byte) error {
	scores, err := encoding.DecodeScores(data)
	if err != nil {
		return err
	}
	*s = scores
	return nil
}

func (s Scores) orEmpty() []float32 {
	if s == nil {
		return []float32{}
	}
	return s
}

// Field pairs a FieldName with its value.
type Field[T Storable] struct {
	Name  FieldName
	Value T
}

// NewField builds a Field after checking T belongs to name.
func NewField[T Storable](name FieldName, value T) (Field[T], error) {
	if err := CheckValue(name, value); err != nil {
		return Field[T]{}, err
	}
	return Field[T]{Name: name, Value: value}, nil
}

// Encode returns the binary form of the value.
func (f Field[T]) Encode() ([]byte, error) {
	return f.Value.ToBytes()
}

// DecodeField rebuilds a Field from its binary form.
func DecodeField[T Storable, PT interface {
	*T
	FromBytes([]byte) error
}](name FieldName, data []byte) (Field[T], error) {
	var v T
	if err := PT(&v).FromBytes(data); err != nil {
		return Field[T]{}, err
	}
	return NewField(name, v)
}

// CheckValue rejects values whose type is not the fixed type of name.
func CheckValue(name FieldName, v Storable) error {
	var ok bool
	switch name {
	case FieldIdentity, FieldTimestamp, FieldText:
		_, ok = v.(Str)
	case FieldTokenIDs:
		_, ok = v.(TokenIDs)
	case FieldScores:
		_, ok = v.(Scores)
	default:
		return fmt.Errorf("%w: unknown field %v", ErrFieldType, name)
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot hold %T", ErrFieldType, name, v)
	}
	return nil
}
