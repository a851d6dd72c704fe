package dynamics

import "github.com/rcliao/engram/internal/frame"

// Oscillation describes a detected periodic cycle in role space.
type Oscillation struct {
	Period int      `json:"period"`
	Cells  int      `json:"oscillating_cells"`
	Roles  [][]int8 `json:"-"` // one period of role grids, diagnostic only
}

// Roles classifies each cell as +1 (local max), -1 (local min), or 0
// (slope), using the same neighbor comparisons as the update rule. Flat
// cells classify as local min.
func Roles(f *frame.Frame) []int8 {
	w, h := f.Width, f.Height
	roles := make([]int8, w*h)
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
			switch {
			case v <= nu && v <= nd && v <= nl && v <= nr:
				roles[y*w+x] = -1
			case v >= nu && v >= nd && v >= nl && v >= nr:
				roles[y*w+x] = 1
			}
		}
	}
	return roles
}

// DetectOscillation checks the tail of an evolution history for periodic
// role cycling. Returns nil unless some period p in [OscMinPeriod,
// OscMaxPeriod] repeats across the whole window and at least OscMinCellFrac
// of the grid both matches the period and actually changes role.
func DetectOscillation(history []*frame.Frame, p Params) *Oscillation {
	if len(history) < p.OscWindow {
		return nil
	}

	recent := history[len(history)-p.OscWindow:]
	roles := make([][]int8, len(recent))
	for i, f := range recent {
		roles[i] = Roles(f)
	}
	total := len(roles[0])

	// Cells whose role ever differs from the window's first frame.
	changed := make([]bool, total)
	anyChanged := false
	for t := 1; t < len(roles); t++ {
		for c, r := range roles[t] {
			if r != roles[0][c] {
				changed[c] = true
				anyChanged = true
			}
		}
	}
	if !anyChanged {
		return nil
	}

	for period := p.OscMinPeriod; period <= p.OscMaxPeriod; period++ {
		if period >= p.OscWindow {
			break
		}

		matches := make([]bool, total)
		for i := range matches {
			matches[i] = true
		}
		for t := 0; t < p.OscWindow-period; t++ {
			for c := range matches {
				if roles[t][c] != roles[t+period][c] {
					matches[c] = false
				}
			}
		}

		oscillating := 0
		for c := range matches {
			if matches[c] && changed[c] {
				oscillating++
			}
		}
		if float64(oscillating) >= float64(total)*p.OscMinCellFrac {
			cycle := make([][]int8, period)
			copy(cycle, roles[:period])
			return &Oscillation{Period: period, Cells: oscillating, Roles: cycle}
		}
	}

	return nil
}
