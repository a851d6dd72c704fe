package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/dynamics"
)

// ExportEntry is one memory in portable form. Only Text, Chunk, and
// Encoder drive a re-import; the rest documents the exported state.
type ExportEntry struct {
	Chunk        string         `json:"chunk"`
	Text         string         `json:"text"`
	Encoder      string         `json:"encoder"`
	Key          string         `json:"key"`
	State        dynamics.State `json:"state"`
	Ticks        int            `json:"ticks"`
	HitCount     int            `json:"hit_count"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// Export dumps one chunk, or all chunks when chunk is empty.
func (e *Engine) Export(ctx context.Context, chunk string) ([]ExportEntry, error) {
	entries, err := e.List(ctx, chunk)
	if err != nil {
		return nil, err
	}
	out := make([]ExportEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ExportEntry{
			Chunk:        entry.Chunk,
			Text:         entry.Text,
			Encoder:      entry.Encoder,
			Key:          entry.Key,
			State:        entry.State,
			Ticks:        entry.Ticks,
			HitCount:     entry.HitCount,
			CreatedAt:    entry.CreatedAt,
			LastAccessed: entry.LastAccessed,
		})
	}
	return out, nil
}

// ImportReport tallies one import run.
type ImportReport struct {
	Total      int `json:"total"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Unstored   int `json:"unstored"`
	Errors     int `json:"errors"`
}

// Import re-stores entries through the full pipeline, so every imported
// memory is re-encoded and re-relaxed rather than trusted. Deterministic
// content keys make repeated hash-encoder imports idempotent under the
// skip policy and reinforcing under the default. Individual failures are
// logged and counted, not fatal.
func (e *Engine) Import(ctx context.Context, entries []ExportEntry) (*ImportReport, error) {
	report := &ImportReport{Total: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if entry.Text == "" {
			report.Errors++
			continue
		}
		res, err := e.Store(ctx, entry.Text, StoreOptions{
			Chunk:        entry.Chunk,
			UseEmbedding: entry.Encoder == "embed",
		})
		if err != nil {
			report.Errors++
			e.log.Warn("import entry failed", zap.Error(err))
			continue
		}
		switch {
		case !res.Stored:
			report.Unstored++
		case res.Created:
			report.Created++
		default:
			report.Duplicates++
		}
	}
	if report.Errors == report.Total && report.Total > 0 {
		return report, fmt.Errorf("no entries imported")
	}
	return report, nil
}
