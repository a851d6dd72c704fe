// Package encode turns text into seed frames for the dynamics engine.
// Two strategies share one contract: a deterministic hash encoder for
// exact recall and an embedding encoder for semantic recall.
package encode

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"

	"github.com/rcliao/engram/internal/embedding"
	"github.com/rcliao/engram/internal/frame"
)

// Encoding is a seed frame plus the content key that addresses it on disk.
// Identical text through the same encoder always yields the same Encoding.
type Encoding struct {
	Frame *frame.Frame
	Key   string
}

// Encoder converts text to a seed frame.
type Encoder interface {
	Encode(ctx context.Context, text string) (*Encoding, error)
	Name() string
}

const (
	stampCount = 16
	stampSize  = 8

	// Mixes the per-stamp index into the digest seed so each stamp
	// draws an independent value stream.
	stampSeedMix = 0x9E3779B97F4A7C15
)

// Hash encodes text by stamping hash-seeded 8x8 kernels at digest-derived
// zones. Overlapping stamps interfere, so every input gets a unique,
// exactly reproducible pattern. Cannot fail and performs no I/O.
type Hash struct {
	Width  int
	Height int
}

// NewHash returns a hash encoder producing width x height frames.
func NewHash(width, height int) *Hash {
	return &Hash{Width: width, Height: height}
}

func (h *Hash) Name() string { return "hash" }

func (h *Hash) Encode(_ context.Context, text string) (*Encoding, error) {
	digest := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(digest[:8])

	f := frame.New(h.Width, h.Height)
	for i := 0; i < stampCount; i++ {
		// Digest byte pair picks the stamp's top-left corner.
		y0 := int(digest[2*i]) * h.Height / 256
		x0 := int(digest[2*i+1]) * h.Width / 256

		rng := rand.New(rand.NewSource(int64(seed ^ uint64(i+1)*stampSeedMix)))
		for dy := 0; dy < stampSize; dy++ {
			y := (y0 + dy) % h.Height
			for dx := 0; dx < stampSize; dx++ {
				x := (x0 + dx) % h.Width
				f.Cells[y*h.Width+x] += rng.Float64()*2 - 1
			}
		}
	}
	f.Clamp()

	return &Encoding{Frame: f, Key: hex.EncodeToString(digest[:])}, nil
}

// projectionSeed fixes the random projection across process runs. Changing
// it invalidates every stored embedding-keyed attractor.
const projectionSeed = 0xDEADBEEF

// Embed encodes text through a sentence-embedding provider followed by a
// fixed Gaussian random projection onto the grid. Similar text produces
// similar frames, which is what makes fuzzy recall work downstream.
type Embed struct {
	Width  int
	Height int

	provider   embedding.Embedder
	projection []float64 // dims x cells, row-major
	dims       int
}

// NewEmbed returns an embedding encoder backed by provider. The projection
// matrix is generated here from a fixed seed, so it is identical in every
// process that ever touches the same store.
func NewEmbed(width, height int, provider embedding.Embedder) (*Embed, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is not configured")
	}
	dims := provider.Dims()
	if dims <= 0 {
		return nil, fmt.Errorf("embedding provider reports %d dims", dims)
	}
	cells := width * height

	rng := rand.New(rand.NewSource(projectionSeed))
	scale := 1.0 / math.Sqrt(float64(cells))
	proj := make([]float64, dims*cells)
	for i := range proj {
		proj[i] = rng.NormFloat64() * scale
	}

	return &Embed{
		Width:      width,
		Height:     height,
		provider:   provider,
		projection: proj,
		dims:       dims,
	}, nil
}

func (e *Embed) Name() string { return "embed" }

func (e *Embed) Encode(ctx context.Context, text string) (*Encoding, error) {
	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vec) != e.dims {
		return nil, fmt.Errorf("embedding has %d dims, want %d", len(vec), e.dims)
	}

	cells := e.Width * e.Height
	flat := make([]float64, cells)
	for d := 0; d < e.dims; d++ {
		v := float64(vec[d])
		if v == 0 {
			continue
		}
		row := e.projection[d*cells : (d+1)*cells]
		for c, p := range row {
			flat[c] += v * p
		}
	}

	f := frame.New(e.Width, e.Height)
	for c, x := range flat {
		// Raw projection values cluster near zero. The 3x gain spreads
		// tanh output across most of (-1, 1).
		f.Cells[c] = math.Tanh(x * 3.0)
	}

	return &Encoding{Frame: f, Key: vectorKey(vec)}, nil
}

// vectorKey hashes the embedding bytes rather than the text, so the key is
// stable for the text yet independent of its hash-encoder key.
func vectorKey(vec embedding.Vector) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
