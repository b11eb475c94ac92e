// Package vector provides distance metrics and in-memory similarity search.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metric names a semantic distance between embedding vectors. Distances are
// non-negative; smaller means more similar.
type Metric string

const (
	// MetricCosine is cosine distance: 1 - cosine similarity, in [0, 2].
	MetricCosine Metric = "cosine"
	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "l2"
)

// DistanceFunc computes the distance between two equal-length vectors.
type DistanceFunc func(a, b []float32) float64

// DistanceFuncFor returns the distance function for a metric.
func DistanceFuncFor(m Metric) (DistanceFunc, error) {
	switch m {
	case MetricCosine, "":
		return CosineDistance, nil
	case MetricL2:
		return L2Distance, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", m)
	}
}

// CosineDistance returns 1 minus the cosine similarity of a and b.
// Zero-magnitude vectors are treated as maximally dissimilar.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// L2Distance returns the Euclidean distance between a and b.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Encode serializes a vector as little-endian float32 bytes for persistence.
func Encode(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

// Decode deserializes a vector produced by Encode.
func Decode(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
