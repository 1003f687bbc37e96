package memory

import (
	"math"
	"slices"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "scaled vector",
			a:        []float32{3, 5, 7, 11},
			b:        []float32{6, 10, 14, 22},
			expected: 1.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "different lengths",
			a:        []float32{1, 2},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "nil vector",
			a:        nil,
			b:        []float32{1},
			expected: 0.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -1.2, 4.5}, {2, 0.1, -0.7}},
		{{1, 1, 1, 1}, {0.5, 0.25, 0.125, 0}},
		{{-3, 7}, {7, -3}},
		{{3, 5, 7, 11}, {0.3, -1.2, 4.5, 2}},
		{{0.3, -1.2, 4.5}, {1e-3, 2e-3, 3e-3}},
	}

	for _, p := range pairs {
		if ab, ba := CosineSimilarity(p[0], p[1]), CosineSimilarity(p[1], p[0]); ab != ba {
			t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
		}
		for _, v := range p {
			if self := CosineSimilarity(v, v); self != 1.0 {
				t.Errorf("self similarity of %v = %v, want exactly 1", v, self)
			}
		}
	}
}

func TestRank(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate[string]{
		{Item: "orthogonal", Vector: []float32{0, 1}},
		{Item: "close", Vector: []float32{0.9, 0.1}},
		{Item: "missing"},
		{Item: "exact", Vector: []float32{2, 0}},
		{Item: "wrong-dim", Vector: []float32{1, 0, 0}},
	}

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{name: "top two", k: 2, want: []string{"exact", "close"}},
		{name: "k above candidate count returns all with vectors", k: 10, want: []string{"exact", "close", "orthogonal", "wrong-dim"}},
		{name: "zero k", k: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(query, candidates, tt.k)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	query := []float32{1, 1}
	candidates := []Candidate[int]{
		{Item: 1, Vector: []float32{1, 0}},
		{Item: 2, Vector: []float32{0, 1}},
		{Item: 3, Vector: []float32{2, 0}},
		{Item: 4, Vector: []float32{1, 1}},
	}

	got := Rank(query, candidates, 4)
	want := []int{4, 1, 2, 3}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
