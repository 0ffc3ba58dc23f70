package utils

import (
	"math"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// CosineSimilarity is the cosine of the angle between a and b, accumulated in
// float64. Mismatched lengths, empty input and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, aa, bb float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		aa += float64(x) * float64(x)
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return dot / math.Sqrt(aa*bb)
}

// UnitSimilarity is CosineSimilarity clamped to [0,1], the range used for ranking.
func UnitSimilarity(a, b []float32) float64 {
	return types.ClampUnit(CosineSimilarity(a, b))
}

// Centroid is the element-wise mean of the vectors sharing the first non-empty
// vector's dimension. Others are skipped. It is nil when nothing is usable.
func Centroid(vectors [][]float32) []float32 {
	dim := 0
	for _, v := range vectors {
		if dim = len(v); dim > 0 {
			break
		}
	}
	if dim == 0 {
		return nil
	}

	acc := make([]float64, dim)
	n := 0.0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
		n++
	}
	out := make([]float32, dim)
	for i, s := range acc {
		out[i] = float32(s / n)
	}
	return out
}
