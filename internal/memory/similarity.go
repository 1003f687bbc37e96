package memory

import (
	"math"
	"slices"
)

// Candidate pairs an item with the vector it is ranked by.
// A candidate with a nil or empty Vector is never returned by Rank.
type Candidate[T any] struct {
	Item   T
	Vector []float32
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// It returns 0 for empty vectors, vectors of different length, or when either
// vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	// one square root keeps similarity(a, a) exactly 1
	return dot / math.Sqrt(normA*normB)
}

type scored[T any] struct {
	item  T
	score float64
}

// Rank orders candidates by cosine similarity to query, highest first, and
// returns at most k items. Equal scores keep their input order.
func Rank[T any](query []float32, candidates []Candidate[T], k int) []T {
	if k <= 0 {
		return nil
	}

	results := make([]scored[T], 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		results = append(results, scored[T]{item: c.Item, score: CosineSimilarity(query, c.Vector)})
	}

	slices.SortStableFunc(results, func(a, b scored[T]) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	top := min(k, len(results))
	items := make([]T, top)
	for i := range top {
		items[i] = results[i].item
	}
	return items
}
