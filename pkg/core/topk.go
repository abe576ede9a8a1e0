package core

import (
	"cmp"
	"slices"
)

// TokenScore is a token id with its score.
type TokenScore struct {
	TokenID uint32  `json:"token_id"`
	Score   float32 `json:"score"`
}

// TopK returns the k highest-scoring (token id, score) pairs, ordered by
// score descending. Equal scores keep their original order and every
// position appears at most once. The result holds min(k, len(scores)) pairs.
func TopK(tokenIDs []uint32, scores []float32, k int) ([]TokenScore, error) {
	if len(tokenIDs) != len(scores) {
		return nil, &DimensionMismatchError{TokenIDs: len(tokenIDs), Scores: len(scores)}
	}
	if k < 0 {
		return nil, ErrInvalidK
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	n := min(k, len(order))
	out := make([]TokenScore, n)
	for i, pos := range order[:n] {
		out[i] = TokenScore{TokenID: tokenIDs[pos], Score: scores[pos]}
	}
	return out, nil
}

// TopToken returns the single highest-scoring token.
func TopToken(tokenIDs []uint32, scores []float32) (TokenScore, error) {
	top, err := TopK(tokenIDs, scores, 1)
	if err != nil {
		return TokenScore{}, err
	}
	if len(top) == 0 {
		return TokenScore{}, ErrNotFound
	}
	return top[0], nil
}
