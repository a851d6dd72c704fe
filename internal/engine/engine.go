// Package engine wires encoding, relaxation, routing, and storage into
// the operations the CLI exposes. One Engine owns one data root.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/batch"
	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/chunk"
	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/embedding"
	"github.com/rcliao/engram/internal/encode"
	"github.com/rcliao/engram/internal/store"
)

// Config controls one engine instance. Zero fields fall back to the
// canonical defaults, so Config{Root: dir} is a working setup.
type Config struct {
	Root   string
	Width  int
	Height int

	TopK             int
	ReadLimit        int
	ReconstructAlpha float64
	MaxRotations     int

	Params   dynamics.Params
	Policy   store.DuplicatePolicy
	Router   *chunk.Router
	Embedder embedding.Embedder

	// KeepFailed persists memories that never converged. Off by default:
	// an attractor that does not settle is not a memory, just noise.
	KeepFailed bool

	Log *zap.Logger
}

// DefaultConfig returns the canonical configuration for a data root.
func DefaultConfig(root string) Config {
	return Config{
		Root:             root,
		Width:            64,
		Height:           64,
		TopK:             5,
		ReadLimit:        chunk.DefaultReadLimit,
		ReconstructAlpha: 0.3,
		MaxRotations:     len(dynamics.Angles),
		Params:           dynamics.DefaultParams(),
		Policy:           store.Reinforce,
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig(c.Root)
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.ReconstructAlpha <= 0 {
		c.ReconstructAlpha = def.ReconstructAlpha
	}
	if c.MaxRotations <= 0 || c.MaxRotations > len(dynamics.Angles) {
		c.MaxRotations = def.MaxRotations
	}
	if c.Params.MaxTicks == 0 {
		c.Params = def.Params
	}
	if c.Policy == "" {
		c.Policy = def.Policy
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// Engine is the library facade over the full pipeline.
type Engine struct {
	cfg    Config
	store  *store.Store
	router *chunk.Router
	stats  *dynamics.Stats
	batch  batch.Evolver
	hash   *encode.Hash
	embed  *encode.Embed
	log    *zap.Logger
}

// New opens the data root and assembles the pipeline. The embedding
// encoder is only available when cfg.Embedder is set; the hash encoder
// always works.
func New(cfg Config) (*Engine, error) {
	cfg.fillDefaults()
	if cfg.Root == "" {
		return nil, fmt.Errorf("engine: data root is required")
	}

	st, err := store.Open(cfg.Root, cfg.Log)
	if err != nil {
		return nil, err
	}

	stats, err := dynamics.LoadStats(filepath.Join(cfg.Root, "rotation_stats.json"))
	if err != nil {
		st.Close()
		return nil, err
	}

	router := cfg.Router
	if router == nil {
		router, err = chunk.FromEnv()
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	e := &Engine{
		cfg:    cfg,
		store:  st,
		router: router,
		stats:  stats,
		batch:  batch.New(cfg.Params, cfg.Log),
		hash:   encode.NewHash(cfg.Width, cfg.Height),
		log:    cfg.Log,
	}
	if cfg.Embedder != nil {
		e.embed, err = encode.NewEmbed(cfg.Width, cfg.Height, cfg.Embedder)
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	return e, nil
}

// Close flushes rotation statistics and releases the store.
func (e *Engine) Close() error {
	if err := e.stats.Flush(); err != nil {
		e.log.Warn("rotation stats flush failed", zap.Error(err))
	}
	return e.store.Close()
}

// RotationStats exposes the per-angle convergence counters.
func (e *Engine) RotationStats() *dynamics.Stats { return e.stats }

func (e *Engine) encoderFor(useEmbedding bool) (encode.Encoder, error) {
	if !useEmbedding {
		return e.hash, nil
	}
	if e.embed == nil {
		return nil, fmt.Errorf("embedding encoder requested but no provider is configured")
	}
	return e.embed, nil
}

// retrier builds the rotation retry controller. Stats are recorded only
// for store-path evolutions; probe evolutions pass record=false so
// recalls do not inflate the per-angle success counts.
func (e *Engine) retrier(record bool) *dynamics.Retrier {
	r := &dynamics.Retrier{
		Params:       e.cfg.Params,
		MaxRotations: e.cfg.MaxRotations,
		Log:          e.log,
	}
	if record {
		r.Stats = e.stats
	}
	return r
}

// StoreOptions adjusts a single store call.
type StoreOptions struct {
	// Chunk pins the destination, skipping keyword routing.
	Chunk string
	// UseEmbedding encodes through the embedding provider instead of the
	// hash encoder.
	UseEmbedding bool
	// KeepFailed persists this memory even when no rotation converged.
	KeepFailed bool
}

// StoreResult reports one store call. Entry is nil when the memory was
// not persisted.
type StoreResult struct {
	Entry    *store.Entry   `json:"entry,omitempty"`
	Key      string         `json:"key"`
	Chunk    string         `json:"chunk,omitempty"`
	Encoder  string         `json:"encoder"`
	State    dynamics.State `json:"state"`
	Ticks    int            `json:"ticks"`
	Rotation int            `json:"rotation"`
	Attempts int            `json:"attempts"`
	WallTime float64        `json:"wall_time_seconds"`
	Stored   bool           `json:"stored"`
	Created  bool           `json:"created"`
}

// Store encodes text, relaxes it to an attractor with rotation retries,
// and persists the outcome. Non-converged memories are discarded unless
// KeepFailed is set here or in the config.
func (e *Engine) Store(ctx context.Context, text string, opts StoreOptions) (*StoreResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot store empty text")
	}
	enc, err := e.encoderFor(opts.UseEmbedding)
	if err != nil {
		return nil, err
	}

	encoding, err := enc.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	res := e.retrier(true).Evolve(encoding.Frame)
	out := &StoreResult{
		Key:      encoding.Key,
		Encoder:  enc.Name(),
		State:    res.State,
		Ticks:    res.Ticks,
		Rotation: res.Rotation,
		Attempts: res.Attempts,
		WallTime: res.WallTime,
	}

	if res.State != dynamics.StateConverged && !opts.KeepFailed && !e.cfg.KeepFailed {
		e.log.Info("memory did not converge, not stored",
			zap.String("state", string(res.State)),
			zap.Int("attempts", res.Attempts))
		return out, nil
	}

	name := opts.Chunk
	if name == "" {
		name = e.router.Write(text)
	}

	b := brick.FromResult(res)
	b.Meta.Key = encoding.Key
	b.Meta.Text = text

	entry, created, err := e.store.Put(ctx, store.PutParams{
		Chunk:     name,
		Key:       encoding.Key,
		Text:      text,
		Encoder:   enc.Name(),
		State:     res.State,
		Ticks:     res.Ticks,
		Rotation:  res.Rotation,
		Attempts:  res.Attempts,
		Attractor: res.Attractor,
		Brick:     b,
		Policy:    e.cfg.Policy,
	})
	if err != nil {
		return nil, err
	}

	out.Entry = entry
	out.Chunk = entry.Chunk
	out.Stored = true
	out.Created = created
	e.log.Debug("stored memory",
		zap.String("chunk", entry.Chunk),
		zap.String("key", shortKey(encoding.Key)),
		zap.String("state", string(res.State)),
		zap.Int("ticks", res.Ticks),
		zap.Int("rotation", res.Rotation),
		zap.Bool("created", created))
	return out, nil
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
