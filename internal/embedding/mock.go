package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock is a deterministic offline embedder for tests and development. The
// vector is derived from an FNV hash of the text, so identical text always
// embeds identically while different text diverges.
type Mock struct {
	dims int
}

// NewMock returns a mock embedder with the canonical 384 dimensions.
func NewMock() *Mock {
	return &Mock{dims: 384}
}

func (m *Mock) Embed(ctx context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make(Vector, m.dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (m *Mock) Dims() int { return m.dims }

// normalize scales a vector to unit length.
func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
