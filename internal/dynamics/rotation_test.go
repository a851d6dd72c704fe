package dynamics

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStats(t *testing.T) *Stats {
	t.Helper()
	s, err := LoadStats(filepath.Join(t.TempDir(), "rotation_stats.json"))
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	return s
}

func TestLoadStatsMissingFile(t *testing.T) {
	s := newTestStats(t)
	counts := s.Counts()
	for _, angle := range Angles {
		if counts[angle] != 0 {
			t.Errorf("expected zero count for %d, got %d", angle, counts[angle])
		}
	}
}

func TestStatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation_stats.json")
	s, err := LoadStats(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s.RecordSuccess(90)
	s.RecordSuccess(90)
	s.RecordSuccess(270)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reloaded, err := LoadStats(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	counts := reloaded.Counts()
	if counts[90] != 2 || counts[270] != 1 || counts[0] != 0 {
		t.Errorf("unexpected counts after reload: %v", counts)
	}
}

func TestLoadStatsRejectsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation_stats.json")
	os.WriteFile(path, []byte("not json"), 0o644)

	if _, err := LoadStats(path); err == nil {
		t.Error("expected error for corrupt stats file")
	}
}

func TestRetrierConvergesFirstAngle(t *testing.T) {
	stats := newTestStats(t)
	r := NewRetrier(stats, nil)

	res := r.Evolve(checkerboard(8, 8, 0.5))
	if res.State != StateConverged {
		t.Fatalf("expected CONVERGED, got %s", res.State)
	}
	if res.Rotation != 0 || res.Attempts != 1 {
		t.Errorf("expected rotation 0 on attempt 1, got %d on attempt %d", res.Rotation, res.Attempts)
	}
	if got := stats.Counts()[0]; got != 1 {
		t.Errorf("expected success recorded for angle 0, got %d", got)
	}
}

func TestRetrierExhaustsAllRotations(t *testing.T) {
	r := NewRetrier(nil, nil)
	r.Params.Epsilon = 0 // nothing can converge
	r.Params.MaxTicks = 10

	res := r.Evolve(noiseFrame(8, 8, 5))
	if res.State != StateFailedAllRotations {
		t.Fatalf("expected FAILED_ALL_ROTATIONS, got %s", res.State)
	}
	if res.Attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", res.Attempts)
	}
	if res.Rotation != 270 {
		t.Errorf("expected last angle 270, got %d", res.Rotation)
	}
	if res.WallTime < 0 {
		t.Errorf("wall time should be non-negative, got %v", res.WallTime)
	}
}

func TestRetrierRespectsMaxRotations(t *testing.T) {
	r := NewRetrier(nil, nil)
	r.Params.Epsilon = 0
	r.Params.MaxTicks = 10
	r.MaxRotations = 2

	res := r.Evolve(noiseFrame(8, 8, 5))
	if res.State != StateFailedAllRotations {
		t.Fatalf("expected FAILED_ALL_ROTATIONS, got %s", res.State)
	}
	if res.Attempts != 2 || res.Rotation != 90 {
		t.Errorf("expected 2 attempts ending at 90, got %d at %d", res.Attempts, res.Rotation)
	}
}
