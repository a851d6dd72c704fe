// Package brick records the full temporal history of a memory's
// formation: every frame from seed to final attractor, with the outcome
// metadata. Bricks exist for failure analysis and audit, never for recall.
package brick

import (
	"fmt"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

// Brick is the complete record of one store operation. Written once by
// the store that created it, read-only afterward.
type Brick struct {
	History   []*frame.Frame
	Attractor *frame.Frame
	Ticks     int
	State     dynamics.State
	Meta      Meta
}

// Meta is the store-time context serialized into the brick header.
type Meta struct {
	Rotation    int     `json:"rotation"`
	Attempts    int     `json:"attempts"`
	WallTime    float64 `json:"wall_time_seconds"`
	CyclePeriod int     `json:"cycle_period,omitempty"`
	CycleCells  int     `json:"oscillating_cells,omitempty"`
	Key         string  `json:"key,omitempty"`
	Text        string  `json:"text,omitempty"` // preview, not the full content
}

// FromResult builds a brick from an evolution result.
func FromResult(res *dynamics.Result) *Brick {
	b := &Brick{
		History:   res.History,
		Attractor: res.Attractor,
		Ticks:     res.Ticks,
		State:     res.State,
		Meta: Meta{
			Rotation: res.Rotation,
			Attempts: res.Attempts,
			WallTime: res.WallTime,
		},
	}
	if res.Cycle != nil {
		b.Meta.CyclePeriod = res.Cycle.Period
		b.Meta.CycleCells = res.Cycle.Cells
	}
	return b
}

// FrameAt returns the frame at tick n. Tick 0 is the seed; the last tick
// is the attractor.
func (b *Brick) FrameAt(n int) (*frame.Frame, error) {
	if n < 0 || n >= len(b.History) {
		return nil, fmt.Errorf("tick %d outside history [0,%d]", n, len(b.History)-1)
	}
	return b.History[n], nil
}

// DivergencePoint returns the tick where an oscillating brick's cycle
// began, found by scanning backward in role space by the cycle period.
// Tick 0 means the whole history was periodic. The second return is false
// for bricks that did not oscillate.
func (b *Brick) DivergencePoint() (int, bool) {
	if b.State != dynamics.StateOscillating {
		return 0, false
	}
	period := b.Meta.CyclePeriod
	if period < 1 {
		period = 2
	}

	n := len(b.History)
	for t := n - period - 1; t > 0; t-- {
		if !rolesEqual(dynamics.Roles(b.History[t]), dynamics.Roles(b.History[t+period])) {
			return t + 1, true
		}
	}
	return 0, true
}

func rolesEqual(a, b []int8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
