package brick

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

func checkerboard(w, h int, v float64) *frame.Frame {
	f := frame.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				f.Set(x, y, v)
			} else {
				f.Set(x, y, -v)
			}
		}
	}
	return f
}

func flat(w, h int, v float64) *frame.Frame {
	f := frame.New(w, h)
	for i := range f.Cells {
		f.Cells[i] = v
	}
	return f
}

func convergedBrick(t *testing.T) *Brick {
	t.Helper()
	res := dynamics.Evolve(checkerboard(16, 16, 0.5), dynamics.DefaultParams())
	if res.State != dynamics.StateConverged {
		t.Fatalf("seed did not converge: %s", res.State)
	}
	res.Rotation = 90
	res.Attempts = 2
	res.WallTime = 0.25
	return FromResult(res)
}

func TestFromResult(t *testing.T) {
	b := convergedBrick(t)

	if b.State != dynamics.StateConverged {
		t.Fatalf("State = %s", b.State)
	}
	if len(b.History) != b.Ticks+1 {
		t.Fatalf("history has %d frames for %d ticks", len(b.History), b.Ticks)
	}
	if b.Meta.Rotation != 90 || b.Meta.Attempts != 2 || b.Meta.WallTime != 0.25 {
		t.Fatalf("meta not carried: %+v", b.Meta)
	}
}

func TestFrameAt(t *testing.T) {
	b := convergedBrick(t)

	seed, err := b.FrameAt(0)
	if err != nil {
		t.Fatalf("FrameAt(0) error = %v", err)
	}
	if diff := cmp.Diff(b.History[0], seed); diff != "" {
		t.Fatalf("FrameAt(0) is not the seed:\n%s", diff)
	}

	last, err := b.FrameAt(len(b.History) - 1)
	if err != nil {
		t.Fatalf("FrameAt(last) error = %v", err)
	}
	if diff := cmp.Diff(b.Attractor, last); diff != "" {
		t.Fatalf("FrameAt(last) is not the attractor:\n%s", diff)
	}

	if _, err := b.FrameAt(len(b.History)); err == nil {
		t.Fatal("FrameAt past the end should error")
	}
	if _, err := b.FrameAt(-1); err == nil {
		t.Fatal("FrameAt(-1) should error")
	}
}

func TestDivergencePointNotOscillating(t *testing.T) {
	b := convergedBrick(t)
	if _, ok := b.DivergencePoint(); ok {
		t.Fatal("converged brick reported a divergence point")
	}
}

func TestDivergencePoint(t *testing.T) {
	a := checkerboard(8, 8, 0.5)
	inv := checkerboard(8, 8, -0.5)

	// Two pre-cycle frames, then a period-2 cycle from tick 2 on.
	history := []*frame.Frame{
		flat(8, 8, 0.1),
		flat(8, 8, 0.3),
		a, inv, a.Clone(), inv.Clone(), a.Clone(),
	}
	b := &Brick{
		History:   history,
		Attractor: history[len(history)-1],
		Ticks:     len(history) - 1,
		State:     dynamics.StateOscillating,
		Meta:      Meta{CyclePeriod: 2, CycleCells: 64},
	}

	tick, ok := b.DivergencePoint()
	if !ok {
		t.Fatal("oscillating brick reported no divergence point")
	}
	if tick != 2 {
		t.Fatalf("divergence at tick %d, want 2", tick)
	}
}

func TestDivergencePointFullyPeriodic(t *testing.T) {
	a := checkerboard(8, 8, 0.5)
	inv := checkerboard(8, 8, -0.5)
	history := []*frame.Frame{a, inv, a.Clone(), inv.Clone(), a.Clone()}
	b := &Brick{
		History:   history,
		Attractor: history[len(history)-1],
		Ticks:     len(history) - 1,
		State:     dynamics.StateOscillating,
		Meta:      Meta{CyclePeriod: 2},
	}

	tick, ok := b.DivergencePoint()
	if !ok || tick != 0 {
		t.Fatalf("DivergencePoint() = %d, %v; want 0, true", tick, ok)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	b := convergedBrick(t)
	b.Meta.Key = "abc123"
	b.Meta.Text = "checkerboard memory"

	data, err := b.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.State != b.State || got.Ticks != b.Ticks {
		t.Fatalf("got state=%s ticks=%d, want state=%s ticks=%d",
			got.State, got.Ticks, b.State, b.Ticks)
	}
	if diff := cmp.Diff(b.Meta, got.Meta); diff != "" {
		t.Fatalf("meta mismatch (-want +got):\n%s", diff)
	}
	if len(got.History) != len(b.History) {
		t.Fatalf("history has %d frames, want %d", len(got.History), len(b.History))
	}
	for i := range b.History {
		if diff := cmp.Diff(b.History[i], got.History[i]); diff != "" {
			t.Fatalf("frame %d mismatch (-want +got):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff(b.Attractor, got.Attractor); diff != "" {
		t.Fatalf("attractor mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	if _, err := Unmarshal([]byte("not a brick at all")); err == nil {
		t.Fatal("Unmarshal of garbage should error")
	}

	// Valid gzip, wrong payload.
	var buf bytes.Buffer
	b := convergedBrick(t)
	if err := b.Encode(&buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	data := buf.Bytes()
	truncated := data[:len(data)/2]
	if _, err := Unmarshal(truncated); err == nil {
		t.Fatal("Unmarshal of truncated brick should error")
	}
}

func TestEncodeRejectsEmptyHistory(t *testing.T) {
	b := &Brick{}
	var buf bytes.Buffer
	if err := b.Encode(&buf); err == nil {
		t.Fatal("Encode of empty brick should error")
	}
}
