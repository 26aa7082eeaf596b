package memory

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"math"
	"strings"
)

// Embedder turns text into a fixed-length vector. ModelID identifies
// the model/version so callers can detect a stale index after a
// provider change; Dims is the declared, constant dimension.
type Embedder interface {
	ModelID() string
	Dims() int
	Embed(ctx context.Context, text string) (EmbeddingVector, error)
}

// NullEmbedder is the "none" provider: it always fails, driving every
// caller down the keyword-only degradation path.
type NullEmbedder struct{}

func NewNullEmbedder() *NullEmbedder { return &NullEmbedder{} }

func (NullEmbedder) ModelID() string { return "none" }
func (NullEmbedder) Dims() int       { return 0 }

func (NullEmbedder) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	return nil, newErr(EmbeddingFailure, "Embed", errNoEmbeddingProvider)
}

type noEmbeddingProviderError struct{}

func (noEmbeddingProviderError) Error() string { return "no embedding provider configured" }

var errNoEmbeddingProvider = noEmbeddingProviderError{}

// HashEmbedder is a deterministic, offline embedding provider: it
// hashes each token into a fixed-dimension bag-of-features vector.
// It exists so hybrid retrieval, the outbox, and the breaker can be
// exercised without a network dependency; it is not semantically
// meaningful the way a trained model's output is.
type HashEmbedder struct {
	model string
	dims  int
}

// NewHashEmbedder builds a HashEmbedder with the given declared
// dimension. A non-positive dims falls back to 256 and an empty model
// to "hash-v1".
func NewHashEmbedder(model string, dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	if model == "" {
		model = "hash-v1"
	}
	return &HashEmbedder{model: model, dims: dims}
}

func (h *HashEmbedder) ModelID() string { return h.model }
func (h *HashEmbedder) Dims() int       { return h.dims }

func (h *HashEmbedder) Embed(ctx context.Context, text string) (EmbeddingVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newErr(EmbeddingFailure, "Embed", errEmptyEmbeddingInput)
	}
	vec := make(EmbeddingVector, h.dims)
	for _, tok := range tokenize(text) {
		sum := sha1.Sum([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(h.dims)
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	return normalizeVector(vec), nil
}

type emptyEmbeddingInputError struct{}

func (emptyEmbeddingInputError) Error() string { return "empty embedding input" }

var errEmptyEmbeddingInput = emptyEmbeddingInputError{}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

func normalizeVector(v EmbeddingVector) EmbeddingVector {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sumSq))
	out := make(EmbeddingVector, len(v))
	for i, f := range v {
		out[i] = f * norm
	}
	return out
}

// NewEmbedder is the factory named by the "embedding_provider"
// configuration option.
func NewEmbedder(provider, model string, dims int) Embedder {
	switch provider {
	case "hash":
		return NewHashEmbedder(model, dims)
	case "", "none":
		return NewNullEmbedder()
	default:
		return NewNullEmbedder()
	}
}
