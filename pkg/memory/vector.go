package memory

import (
	"encoding/binary"
	"errors"
	"math"
)

// EmbeddingVector is an ordered sequence of 32-bit floats. Length is
// fixed for a given embedding provider instance.
type EmbeddingVector []float32

// cosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or either vector being empty yields 0, matching
// the spec for a zero-length embedding being a no-op-equivalent row.
func cosineSimilarity(a, b EmbeddingVector) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// l2Distance returns the Euclidean distance between a and b. Mismatched
// lengths yield +Inf since the vectors are not comparable.
func l2Distance(a, b EmbeddingVector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// vecToBytes encodes v as a little-endian IEEE-754 32-bit float blob
// with no header; an empty vector yields an empty (not nil) blob.
func vecToBytes(v EmbeddingVector) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(f))
	}
	return out
}

var errOddBlobLength = errors.New("vector blob length not divisible by 4")

// bytesToVec decodes a little-endian float32 blob produced by
// vecToBytes. The blob length must be a multiple of 4.
func bytesToVec(b []byte) (EmbeddingVector, error) {
	if len(b)%4 != 0 {
		return nil, errOddBlobLength
	}
	n := len(b) / 4
	out := make(EmbeddingVector, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
