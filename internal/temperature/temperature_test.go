package temperature

import (
	"math"
	"testing"
	"time"
)

func TestFreshMemoryIsExactlyWarm(t *testing.T) {
	now := time.Now()
	got := Compute(0, now, now)
	if got != 0.3 {
		t.Fatalf("Compute(0, now, now) = %v, want exactly 0.3", got)
	}
	if Tier(got) != "warm" {
		t.Fatalf("fresh memory tier = %q, want warm", Tier(got))
	}
}

func TestComputeBounds(t *testing.T) {
	now := time.Now()
	for _, hits := range []int{0, 1, 5, 10, 50, 1000} {
		for _, days := range []float64{0, 0.5, 1, 7, 30, 365} {
			accessed := now.Add(-time.Duration(days * 24 * float64(time.Hour)))
			got := Compute(hits, accessed, now)
			if got < 0 || got > 1 {
				t.Fatalf("Compute(%d hits, %v days) = %v out of [0,1]", hits, days, got)
			}
		}
	}
}

func TestComputeSaturatesAtTenHits(t *testing.T) {
	now := time.Now()
	if got := Compute(10, now, now); got != 1.0 {
		t.Fatalf("Compute(10, now, now) = %v, want 1.0", got)
	}
	if got := Compute(100, now, now); got != 1.0 {
		t.Fatalf("Compute(100, now, now) = %v, want 1.0", got)
	}
}

func TestComputeHalfLife(t *testing.T) {
	now := time.Now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	if got := Compute(0, weekAgo, now); got != 0.15 {
		t.Fatalf("Compute(0, 7 days ago) = %v, want 0.15", got)
	}
}

func TestComputeClampsFutureAccess(t *testing.T) {
	now := time.Now()
	if got := Compute(0, now.Add(time.Hour), now); got != 0.3 {
		t.Fatalf("Compute with future last access = %v, want 0.3", got)
	}
}

func TestComputeMonotonicInHits(t *testing.T) {
	now := time.Now()
	prev := -1.0
	for hits := 0; hits <= 10; hits++ {
		got := Compute(hits, now, now)
		if got < prev {
			t.Fatalf("temperature dropped from %v to %v at %d hits", prev, got, hits)
		}
		prev = got
	}
}

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		temp float64
		want string
	}{
		{1.0, "hot"},
		{0.6, "hot"},
		{0.5999, "warm"},
		{0.3, "warm"},
		{0.2999, "cold"},
		{0.0, "cold"},
	}
	for _, tt := range tests {
		if got := Tier(tt.temp); got != tt.want {
			t.Errorf("Tier(%v) = %q, want %q", tt.temp, got, tt.want)
		}
	}
}

func TestStabilityZero(t *testing.T) {
	if got := Stability(0, 0, 0); got != 0 {
		t.Fatalf("Stability(0, 0, 0) = %v, want 0", got)
	}
}

func TestStabilityFullMarks(t *testing.T) {
	if got := Stability(20, 1.0, 1.0); got != 1.0 {
		t.Fatalf("Stability(20, 1, 1) = %v, want 1.0", got)
	}
}

func TestStabilityClampsNegativeCorrelations(t *testing.T) {
	withNeg := Stability(5, -0.8, -0.8)
	hitsOnly := Stability(5, 0, 0)
	if withNeg != hitsOnly {
		t.Fatalf("negative correlations leaked: %v vs %v", withNeg, hitsOnly)
	}
}

func TestStabilityMonotonicInHits(t *testing.T) {
	prev := -1.0
	for hits := 0; hits <= 25; hits++ {
		got := Stability(hits, 0.5, 0.5)
		if got < prev {
			t.Fatalf("stability dropped from %v to %v at %d hits", prev, got, hits)
		}
		prev = got
	}
}

func TestStabilityRounding(t *testing.T) {
	got := Stability(1, 0.5, 0.5)
	want := math.Round((0.4*math.Log(2)/math.Log(21)+0.3)*10000) / 10000
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Stability(1, 0.5, 0.5) = %v, want %v", got, want)
	}
}
