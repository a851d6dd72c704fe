package dynamics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/frame"
)

// Angles are the canonical retry rotations, in attempt order.
var Angles = [4]int{0, 90, 180, 270}

// Stats tracks per-angle convergence success counts with an explicit
// load/flush lifecycle. Safe for concurrent use.
type Stats struct {
	mu     sync.Mutex
	path   string
	counts map[int]int
}

// LoadStats reads rotation statistics from path, starting from zero counts
// when the file does not exist yet.
func LoadStats(path string) (*Stats, error) {
	s := &Stats{
		path:   path,
		counts: map[int]int{0: 0, 90: 0, 180: 0, 270: 0},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rotation stats: %w", err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rotation stats: %w", err)
	}
	for k, v := range raw {
		angle, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		s.counts[angle] = v
	}
	return s, nil
}

// RecordSuccess increments the success count for an angle.
func (s *Stats) RecordSuccess(angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[angle]++
}

// Counts returns a copy of the per-angle success counts.
func (s *Stats) Counts() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Flush writes the counts back to disk.
func (s *Stats) Flush() error {
	s.mu.Lock()
	raw := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		raw[strconv.Itoa(k)] = v
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write rotation stats: %w", err)
	}
	return nil
}

// Retrier wraps the engine with the rotation retry strategy: when a seed
// fails to converge, rotating it changes the effective neighbor topology
// and can land the same information in a different basin.
type Retrier struct {
	Params       Params
	MaxRotations int    // at most len(Angles)
	Stats        *Stats // optional
	Log          *zap.Logger
}

// NewRetrier returns a Retrier with default params and all four angles.
func NewRetrier(stats *Stats, log *zap.Logger) *Retrier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrier{
		Params:       DefaultParams(),
		MaxRotations: len(Angles),
		Stats:        stats,
		Log:          log,
	}
}

// Evolve attempts each rotation in order and returns the first converged
// result. When every rotation fails the last attempt is returned with
// State set to StateFailedAllRotations. The result always carries the
// rotation angle, the 1-based attempt count, and the attempt's wall time.
func (r *Retrier) Evolve(seed *frame.Frame) *Result {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	max := r.MaxRotations
	if max <= 0 || max > len(Angles) {
		max = len(Angles)
	}

	var last *Result
	for i, angle := range Angles[:max] {
		rotated := seed.Rotate90(angle / 90)

		start := time.Now()
		result := Evolve(rotated, r.Params)
		result.Rotation = angle
		result.Attempts = i + 1
		result.WallTime = time.Since(start).Seconds()

		if result.State == StateConverged {
			if r.Stats != nil {
				r.Stats.RecordSuccess(angle)
				if err := r.Stats.Flush(); err != nil {
					log.Warn("rotation stats flush failed", zap.Error(err))
				}
			}
			return result
		}

		log.Debug("rotation attempt failed to converge",
			zap.Int("angle", angle),
			zap.String("state", string(result.State)),
			zap.Int("ticks", result.Ticks))
		last = result
	}

	if r.Stats != nil {
		if err := r.Stats.Flush(); err != nil {
			log.Warn("rotation stats flush failed", zap.Error(err))
		}
	}
	last.State = StateFailedAllRotations
	return last
}
