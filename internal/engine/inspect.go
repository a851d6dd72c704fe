package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
	"github.com/rcliao/engram/internal/store"
	"github.com/rcliao/engram/internal/temperature"
)

// ListEntry is an index record with its current temperature attached.
// Temperature is computed at list time from the hit counters, never
// stored.
type ListEntry struct {
	store.Entry
	Temperature float64 `json:"temperature"`
	Tier        string  `json:"tier"`
}

// List returns entries from one chunk, or from every chunk when chunk is
// empty, newest first. No evolution runs; this is an index read.
func (e *Engine) List(ctx context.Context, chunk string) ([]ListEntry, error) {
	names := []string{chunk}
	if chunk == "" {
		var err error
		names, err = e.store.Chunks()
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	var out []ListEntry
	for _, name := range names {
		entries, err := e.store.Scan(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			temp := temperature.Compute(entry.HitCount, entry.LastAccessed, now)
			out = append(out, ListEntry{
				Entry:       entry,
				Temperature: temp,
				Tier:        temperature.Tier(temp),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// resolve finds an entry by content text or by its literal key. Text is
// translated through the hash encoder first; when that misses and the
// input already looks like a key, it is tried verbatim.
func (e *Engine) resolve(ctx context.Context, chunk, textOrKey string) (*store.Entry, error) {
	lookup := func(key string) (*store.Entry, error) {
		if chunk != "" {
			return e.store.Get(ctx, chunk, key)
		}
		return e.store.Find(ctx, key)
	}

	encoding, err := e.hash.Encode(ctx, textOrKey)
	if err != nil {
		return nil, err
	}
	entry, err := lookup(encoding.Key)
	if err == nil {
		return entry, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}
	if entry, keyErr := lookup(textOrKey); keyErr == nil {
		return entry, nil
	}
	return nil, store.ErrNotFound
}

// StabilityReport scores how firmly one memory is settled.
type StabilityReport struct {
	Key         string         `json:"key"`
	Chunk       string         `json:"chunk"`
	Text        string         `json:"text"`
	State       dynamics.State `json:"state"`
	HitCount    int            `json:"hit_count"`
	Persistence float64        `json:"persistence"`
	Compression float64        `json:"compression"`
	Stability   float64        `json:"stability"`
	Temperature float64        `json:"temperature"`
	Tier        string         `json:"tier"`
}

// Stability re-derives a stored memory two ways and scores the
// agreement: persistence re-encodes the original text and relaxes it
// fresh, compression re-relaxes the stored attractor under further
// pressure. Both are correlated against the stored attractor and
// combined with the hit history.
func (e *Engine) Stability(ctx context.Context, textOrKey, chunk string) (*StabilityReport, error) {
	entry, err := e.resolve(ctx, chunk, textOrKey)
	if err != nil {
		return nil, err
	}
	att, err := e.store.LoadAttractor(ctx, entry.Chunk, entry.Key)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, fmt.Errorf("attractor for %s is missing or unreadable", shortKey(entry.Key))
	}

	enc, err := e.encoderFor(entry.Encoder == "embed")
	if err != nil {
		return nil, err
	}
	encoding, err := enc.Encode(ctx, entry.Text)
	if err != nil {
		return nil, err
	}
	fresh := e.retrier(false).Evolve(encoding.Frame)
	persistence := 0.0
	if fresh.Attractor.Width == att.Width && fresh.Attractor.Height == att.Height {
		persistence = frame.Correlation(fresh.Attractor, att)
	}

	pressured := dynamics.Evolve(att, e.cfg.Params)
	compression := frame.Correlation(pressured.Attractor, att)

	now := time.Now().UTC()
	temp := temperature.Compute(entry.HitCount, entry.LastAccessed, now)
	return &StabilityReport{
		Key:         entry.Key,
		Chunk:       entry.Chunk,
		Text:        entry.Text,
		State:       entry.State,
		HitCount:    entry.HitCount,
		Persistence: persistence,
		Compression: compression,
		Stability:   temperature.Stability(entry.HitCount, persistence, compression),
		Temperature: temp,
		Tier:        temperature.Tier(temp),
	}, nil
}

// LoadBrick fetches the full evolution history for a memory, found by
// text or key, searching across chunks when none is given.
func (e *Engine) LoadBrick(ctx context.Context, textOrKey, chunk string) (*brick.Brick, string, error) {
	entry, err := e.resolve(ctx, chunk, textOrKey)
	if err != nil {
		return nil, "", err
	}
	b, err := e.store.LoadBrick(ctx, entry.Chunk, entry.Key)
	if err != nil {
		return nil, "", err
	}
	if b == nil {
		return nil, "", fmt.Errorf("brick for %s is missing or unreadable", shortKey(entry.Key))
	}
	return b, entry.Chunk, nil
}

// ChunkStats reports per-chunk entry counts and access metadata.
func (e *Engine) ChunkStats(ctx context.Context) ([]store.ChunkInfo, error) {
	return e.store.ChunkStats(ctx)
}

// Overview aggregates everything the stats surface shows.
type Overview struct {
	Store     *store.Stats   `json:"store"`
	Tiers     map[string]int `json:"tiers"`
	Rotations map[int]int    `json:"rotations"`
}

// GlobalStats walks the whole root: entry and state counts, temperature
// tier distribution, rotation success counts, and on-disk size.
func (e *Engine) GlobalStats(ctx context.Context) (*Overview, error) {
	st, err := e.store.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}

	tiers := map[string]int{"hot": 0, "warm": 0, "cold": 0}
	entries, err := e.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		tiers[entry.Tier]++
	}

	return &Overview{
		Store:     st,
		Tiers:     tiers,
		Rotations: e.stats.Counts(),
	}, nil
}
