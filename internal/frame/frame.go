// Package frame defines the bounded 2D grid that memories are encoded into.
package frame

import "math"

// Frame is a W×H grid of values in [-1, 1], stored row-major.
type Frame struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Cells  []float64 `json:"cells"`
}

// New returns a zeroed Frame of the given dimensions.
func New(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Cells:  make([]float64, width*height),
	}
}

// At returns the value at column x, row y.
func (f *Frame) At(x, y int) float64 {
	return f.Cells[y*f.Width+x]
}

// Set writes the value at column x, row y.
func (f *Frame) Set(x, y int, v float64) {
	f.Cells[y*f.Width+x] = v
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Cells: make([]float64, len(f.Cells))}
	copy(c.Cells, f.Cells)
	return c
}

// Clamp bounds every cell to [-1, 1] in place and returns the frame.
func (f *Frame) Clamp() *Frame {
	for i, v := range f.Cells {
		if v > 1 {
			f.Cells[i] = 1
		} else if v < -1 {
			f.Cells[i] = -1
		}
	}
	return f
}

// Rotate90 returns a new frame rotated counterclockwise by k quarter turns.
// Four turns return to the original orientation.
func (f *Frame) Rotate90(k int) *Frame {
	k = ((k % 4) + 4) % 4
	if k == 0 {
		return f.Clone()
	}
	out := f
	for ; k > 0; k-- {
		r := &Frame{Width: out.Height, Height: out.Width, Cells: make([]float64, len(out.Cells))}
		for i := 0; i < r.Height; i++ {
			for j := 0; j < r.Width; j++ {
				r.Cells[i*r.Width+j] = out.Cells[j*out.Width+(out.Width-1-i)]
			}
		}
		out = r
	}
	return out
}

// Blend returns (1-alpha)*a + alpha*b. Frames must share dimensions.
func Blend(a, b *Frame, alpha float64) *Frame {
	out := New(a.Width, a.Height)
	for i := range a.Cells {
		out.Cells[i] = (1-alpha)*a.Cells[i] + alpha*b.Cells[i]
	}
	return out
}

// MeanAbsDiff is the mean absolute per-cell difference between two frames.
func MeanAbsDiff(a, b *Frame) float64 {
	var sum float64
	for i := range a.Cells {
		sum += math.Abs(a.Cells[i] - b.Cells[i])
	}
	return sum / float64(len(a.Cells))
}

// Correlation is the Pearson correlation between the flattened cells of two
// frames. Returns 0 when either side has zero variance.
func Correlation(a, b *Frame) float64 {
	return Pearson(a.Cells, b.Cells)
}

// Pearson computes the Pearson correlation coefficient of two equal-length
// series. Zero-variance input yields 0 rather than NaN.
func Pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	n := float64(len(a))
	meanA /= n
	meanB /= n

	var dot, ssA, ssB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		dot += da * db
		ssA += da * da
		ssB += db * db
	}
	norm := math.Sqrt(ssA * ssB)
	if norm == 0 {
		return 0
	}
	return dot / norm
}
