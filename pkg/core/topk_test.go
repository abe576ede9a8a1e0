package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestTopK(t *testing.T) {
	tests := []struct {
		name   string
		ids    []uint32
		scores []float32
		k      int
		want   []TokenScore
	}{
		{
			name:   "basic",
			ids:    []uint32{1, 2, 3},
			scores: []float32{0.1, 0.2, 0.3},
			k:      2,
			want:   []TokenScore{{3, 0.3}, {2, 0.2}},
		},
		{
			name:   "k exceeds length",
			ids:    []uint32{1, 2, 3},
			scores: []float32{0.1, 0.2, 0.3},
			k:      10,
			want:   []TokenScore{{3, 0.3}, {2, 0.2}, {1, 0.1}},
		},
		{
			name:   "k zero",
			ids:    []uint32{1, 2},
			scores: []float32{0.1, 0.2},
			k:      0,
			want:   []TokenScore{},
		},
		{
			name:   "empty",
			ids:    []uint32{},
			scores: []float32{},
			k:      3,
			want:   []TokenScore{},
		},
		{
			name:   "ties keep original order without duplicates",
			ids:    []uint32{10, 20, 30, 40},
			scores: []float32{0.5, 0.9, 0.5, 0.5},
			k:      3,
			want:   []TokenScore{{20, 0.9}, {10, 0.5}, {30, 0.5}},
		},
		{
			name:   "negative scores",
			ids:    []uint32{7, 8, 9},
			scores: []float32{-3, -1, -2},
			k:      2,
			want:   []TokenScore{{8, -1}, {9, -2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TopK(tt.ids, tt.scores, tt.k)
			if err != nil {
				t.Fatalf("TopK() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TopK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopKDoesNotMutateInput(t *testing.T) {
	ids := []uint32{1, 2, 3}
	scores := []float32{0.3, 0.1, 0.2}
	if _, err := TopK(ids, scores, 3); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(scores, []float32{0.3, 0.1, 0.2}) || !reflect.DeepEqual(ids, []uint32{1, 2, 3}) {
		t.Errorf("inputs modified: %v %v", ids, scores)
	}
}

func TestTopKErrors(t *testing.T) {
	_, err := TopK([]uint32{1, 2}, []float32{0.1}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) || dm.TokenIDs != 2 || dm.Scores != 1 {
		t.Errorf("error = %#v", err)
	}

	if _, err := TopK([]uint32{1}, []float32{0.1}, -1); !errors.Is(err, ErrInvalidK) {
		t.Errorf("error = %v, want ErrInvalidK", err)
	}
}

func TestTopToken(t *testing.T) {
	top, err := TopToken([]uint32{1, 2, 3}, []float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatal(err)
	}
	if top != (TokenScore{3, 0.3}) {
		t.Errorf("TopToken() = %v", top)
	}

	if _, err := TopToken(nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("TopToken(empty) error = %v, want ErrNotFound", err)
	}
}
