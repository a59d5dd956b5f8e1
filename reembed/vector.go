package reembed

import "math"

// NormalizeVector scales v to unit length and returns the result as a new
// slice; v itself is never modified. A zero vector has no direction and
// comes back as a fresh all-zero slice of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float32
	for _, x := range v {
		sum += x * x
	}
	norm := float32(math.Sqrt(float64(sum)))

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
