package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
	"github.com/rcliao/engram/internal/store"
	"github.com/rcliao/engram/internal/temperature"
)

// RecallOptions adjusts a single recall call.
type RecallOptions struct {
	// TopK caps the number of matches; 0 means the config default.
	TopK int
	// Chunk restricts the search to one chunk instead of the routed set.
	Chunk string
	// TemperatureBoost adds boost*temperature to each similarity before
	// ranking, so hot memories surface among near-equal matches.
	TemperatureBoost float64
	// UseEmbedding encodes the query through the embedding provider.
	UseEmbedding bool
	// Reconstruct additionally blends each match with the query attractor
	// and re-relaxes the blend.
	Reconstruct bool
	// Alpha is the reconstruction blend weight toward the query. Negative
	// means the config default; 0 reproduces the stored attractor.
	Alpha float64
}

// Match is one recalled memory, ranked by effective similarity.
type Match struct {
	Entry          store.Entry     `json:"entry"`
	Similarity     float64         `json:"similarity"`
	Effective      float64         `json:"effective_similarity"`
	Temperature    float64         `json:"temperature"`
	Tier           string          `json:"tier"`
	Reconstruction *Reconstruction `json:"reconstruction,omitempty"`
}

// Reconstruction describes re-relaxing a stored attractor nudged toward
// the query.
type Reconstruction struct {
	State      dynamics.State `json:"state"`
	Ticks      int            `json:"ticks"`
	Alpha      float64        `json:"alpha"`
	CorrStored float64        `json:"correlation_with_stored"`
	CorrQuery  float64        `json:"correlation_with_query"`
	Frame      *frame.Frame   `json:"-"`
}

// Recall evolves the query to its own attractor and ranks stored
// attractors by Pearson correlation against it. Returned entries get
// their hit counters bumped, which feeds future temperature scores.
func (e *Engine) Recall(ctx context.Context, query string, opts RecallOptions) ([]Match, error) {
	enc, err := e.encoderFor(opts.UseEmbedding)
	if err != nil {
		return nil, err
	}
	encoding, err := enc.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	qres := e.retrier(false).Evolve(encoding.Frame)
	qatt := qres.Attractor

	chunks, err := e.readSet(query, opts.Chunk)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var matches []Match
	for _, name := range chunks {
		entries, err := e.store.Scan(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			att, err := e.store.LoadAttractor(ctx, name, entry.Key)
			if err != nil {
				return nil, err
			}
			if att == nil || att.Width != qatt.Width || att.Height != qatt.Height {
				continue
			}
			sim := frame.Correlation(qatt, att)
			temp := temperature.Compute(entry.HitCount, entry.LastAccessed, now)
			matches = append(matches, Match{
				Entry:       entry,
				Similarity:  sim,
				Effective:   sim + opts.TemperatureBoost*temp,
				Temperature: temp,
				Tier:        temperature.Tier(temp),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Effective != matches[j].Effective {
			return matches[i].Effective > matches[j].Effective
		}
		return matches[i].Entry.Key < matches[j].Entry.Key
	})
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	e.touchMatches(ctx, matches)

	if opts.Reconstruct && len(matches) > 0 {
		if err := e.reconstruct(ctx, matches, qatt, opts.Alpha); err != nil {
			return nil, err
		}
	}

	e.log.Debug("recall complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("matches", len(matches)),
		zap.String("query_state", string(qres.State)))
	return matches, nil
}

// readSet resolves the chunks a recall searches: the explicit chunk, or
// the router's ranked read set extended with every chunk on disk.
func (e *Engine) readSet(query, explicit string) ([]string, error) {
	if explicit != "" {
		return []string{explicit}, nil
	}
	onDisk, err := e.store.Chunks()
	if err != nil {
		return nil, err
	}
	return e.router.Read(query, e.cfg.ReadLimit, onDisk), nil
}

// touchMatches bumps hit counters for the returned entries, one
// transaction per chunk. Failures degrade to a warning; the recall
// results themselves are already computed.
func (e *Engine) touchMatches(ctx context.Context, matches []Match) {
	byChunk := make(map[string][]string)
	for _, m := range matches {
		byChunk[m.Entry.Chunk] = append(byChunk[m.Entry.Chunk], m.Entry.Key)
	}
	for name, keys := range byChunk {
		if err := e.store.Touch(ctx, name, keys); err != nil {
			e.log.Warn("hit count bump failed",
				zap.String("chunk", name), zap.Error(err))
		}
	}
}

// reconstruct blends each match's stored attractor toward the query and
// re-relaxes all blends as one batch.
func (e *Engine) reconstruct(ctx context.Context, matches []Match, qatt *frame.Frame, alpha float64) error {
	if alpha < 0 {
		alpha = e.cfg.ReconstructAlpha
	}

	stored := make([]*frame.Frame, len(matches))
	seeds := make([]*frame.Frame, len(matches))
	for i, m := range matches {
		att, err := e.store.LoadAttractor(ctx, m.Entry.Chunk, m.Entry.Key)
		if err != nil {
			return err
		}
		if att == nil {
			att = frame.New(qatt.Width, qatt.Height)
		}
		stored[i] = att
		seeds[i] = frame.Blend(att, qatt, alpha)
	}

	results, err := e.batch.EvolveBatch(ctx, seeds)
	if err != nil {
		return err
	}
	for i, res := range results {
		matches[i].Reconstruction = &Reconstruction{
			State:      res.State,
			Ticks:      res.Ticks,
			Alpha:      alpha,
			CorrStored: frame.Correlation(res.Attractor, stored[i]),
			CorrQuery:  frame.Correlation(res.Attractor, qatt),
			Frame:      res.Attractor,
		}
	}
	return nil
}
