// Package dynamics implements the cellular automata engine that relaxes
// encoded frames into stable attractors, plus the rotation retry strategy
// used when a seed fails to settle.
package dynamics

import (
	"github.com/rcliao/engram/internal/frame"
)

// State classifies the outcome of an evolution.
type State string

const (
	StateConverged   State = "CONVERGED"
	StateOscillating State = "OSCILLATING"
	StateChaotic     State = "CHAOTIC"
	// StateFailedAllRotations is assigned by the retry controller when no
	// rotation of the seed converges.
	StateFailedAllRotations State = "FAILED_ALL_ROTATIONS"
)

// Params hold the rule constants and termination thresholds.
type Params struct {
	PeakGain  float64 // step strength for local max/min cells
	SlopeGain float64 // step strength for slope cells
	Epsilon   float64 // mean absolute delta below which a frame has converged
	MaxTicks  int     // tick budget before declaring CHAOTIC

	OscWindow      int     // history frames examined for periodicity
	OscMinPeriod   int     // shortest period considered
	OscMaxPeriod   int     // longest period considered
	OscMinCellFrac float64 // fraction of cells that must oscillate
	OscCheckAfter  int     // first tick at which oscillation is checked
	OscCheckEvery  int     // tick interval between checks
}

// DefaultParams returns the canonical rule constants.
func DefaultParams() Params {
	return Params{
		PeakGain:       0.35,
		SlopeGain:      0.20,
		Epsilon:        1e-4,
		MaxTicks:       1000,
		OscWindow:      20,
		OscMinPeriod:   2,
		OscMaxPeriod:   10,
		OscMinCellFrac: 0.01,
		OscCheckAfter:  50,
		OscCheckEvery:  10,
	}
}

// Result is the classified outcome of evolving one seed frame.
type Result struct {
	State     State
	Attractor *frame.Frame
	Ticks     int
	History   []*frame.Frame // every frame from seed to attractor, inclusive
	Cycle     *Oscillation   // set when State is OSCILLATING

	// Filled by the retry controller.
	Rotation int
	Attempts int
	WallTime float64 // seconds
}

// Step applies one tick of the three-state rule and returns the next frame.
//
// Von Neumann neighborhood with wrapping boundaries. A cell that is <= all
// four neighbors decays toward -1, a cell that is >= all four rises toward
// +1, and anything in between flows toward its largest neighbor. A cell that
// is both (flat neighborhood) decays.
func Step(f *frame.Frame, p Params) *frame.Frame {
	w, h := f.Width, f.Height
	out := frame.New(w, h)
	for y := 0; y < h; y++ {
		up := f.Cells[((y-1+h)%h)*w:]
		down := f.Cells[((y+1)%h)*w:]
		row := f.Cells[y*w:]
		for x := 0; x < w; x++ {
			v := row[x]
			nu := up[x]
			nd := down[x]
			nl := row[(x-1+w)%w]
			nr := row[(x+1)%w]

			isMax := v >= nu && v >= nd && v >= nl && v >= nr
			isMin := v <= nu && v <= nd && v <= nl && v <= nr

			var delta float64
			switch {
			case isMin:
				delta = (-1 - v) * p.PeakGain
			case isMax:
				delta = (1 - v) * p.PeakGain
			default:
				maxN := nu
				if nd > maxN {
					maxN = nd
				}
				if nl > maxN {
					maxN = nl
				}
				if nr > maxN {
					maxN = nr
				}
				delta = (maxN - v) * p.SlopeGain
			}

			next := v + delta
			if next > 1 {
				next = 1
			} else if next < -1 {
				next = -1
			}
			out.Cells[y*w+x] = next
		}
	}
	return out
}

// Evolve runs the engine until convergence, oscillation, or tick budget
// exhaustion. Deterministic for a given seed and params; the tick budget
// bounds worst-case latency so no cancellation is needed.
func Evolve(seed *frame.Frame, p Params) *Result {
	cur := seed.Clone()
	history := make([]*frame.Frame, 0, 64)
	history = append(history, cur.Clone())

	for i := 0; i < p.MaxTicks; i++ {
		next := Step(cur, p)
		delta := frame.MeanAbsDiff(next, cur)
		cur = next
		history = append(history, cur.Clone())

		if delta < p.Epsilon {
			return &Result{
				State:     StateConverged,
				Attractor: cur,
				Ticks:     i + 1,
				History:   history,
			}
		}

		if i > p.OscCheckAfter && i%p.OscCheckEvery == 0 {
			if osc := DetectOscillation(history, p); osc != nil {
				return &Result{
					State:     StateOscillating,
					Attractor: cur,
					Ticks:     i + 1,
					History:   history,
					Cycle:     osc,
				}
			}
		}
	}

	return &Result{
		State:     StateChaotic,
		Attractor: cur,
		Ticks:     p.MaxTicks,
		History:   history,
	}
}
