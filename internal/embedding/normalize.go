package embedding

import "math"

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged. With unit-length vectors the inner product equals
// cosine similarity, which is what the "ip" index metric relies on.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// NormalizeAll normalizes every vector in the batch in place.
func NormalizeAll(vectors [][]float32) [][]float32 {
	for _, v := range vectors {
		Normalize(v)
	}
	return vectors
}
