// Package temperature scores memories by recency, frequency, and
// robustness. Pure computation, no I/O: scores are derived on demand from
// stored counters and wall-clock time, never cached.
package temperature

import (
	"math"
	"time"
)

const (
	HalfLifeDays  = 7.0
	HitSaturation = 10.0

	TierHot  = 0.6
	TierWarm = 0.3
)

// Compute derives a temperature in [0,1] from access counters:
//
//	base  = min(1, 0.3 + 0.7*hits/10)
//	decay = 2^(-days_since_access/7)
//	temp  = base * decay
//
// A freshly stored, just-accessed memory is exactly 0.3 (warm).
func Compute(hitCount int, lastAccessed, now time.Time) float64 {
	days := now.Sub(lastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}

	base := math.Min(1.0, 0.3+0.7*float64(hitCount)/HitSaturation)
	decay := math.Pow(2, -days/HalfLifeDays)

	// Four decimals keeps seconds-level gaps between store and an
	// immediate recall from crossing a tier boundary.
	return round4(base * decay)
}

// Tier classifies a temperature as hot, warm, or cold.
func Tier(temp float64) string {
	switch {
	case temp >= TierHot:
		return "hot"
	case temp >= TierWarm:
		return "warm"
	default:
		return "cold"
	}
}

// Stability combines three robustness signals into one 0-1 score: hit
// frequency (saturating logarithmically near 20 hits), persistence (does
// re-encoding the text reproduce the stored attractor), and compression
// survival (does the attractor stay correlated with itself under extra
// relaxation pressure). Negative correlations count as zero.
func Stability(hitCount int, persistence, compression float64) float64 {
	hitScore := 0.0
	if hitCount > 0 {
		hitScore = math.Min(1.0, math.Log(float64(hitCount)+1)/math.Log(21))
	}
	return round4(0.4*hitScore + 0.3*clamp01(persistence) + 0.3*clamp01(compression))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
