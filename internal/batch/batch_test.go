package batch

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func checkerboard(w, h int, amp float64) *frame.Frame {
	f := frame.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := amp
			if (x+y)%2 == 1 {
				v = -amp
			}
			f.Set(x, y, v)
		}
	}
	return f
}

func noisy(w, h int, seed int64) *frame.Frame {
	rng := rand.New(rand.NewSource(seed))
	f := frame.New(w, h)
	for i := range f.Cells {
		f.Cells[i] = rng.Float64()*2 - 1
	}
	return f
}

func testSeeds() []*frame.Frame {
	return []*frame.Frame{
		checkerboard(16, 16, 0.9),
		checkerboard(16, 16, 0.1),
		noisy(16, 16, 1),
		noisy(16, 16, 2),
		frame.New(16, 16),
		noisy(24, 24, 3),
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	seeds := testSeeds()
	params := dynamics.DefaultParams()

	seq := &Sequential{Params: params}
	par := &Parallel{Params: params, Workers: 4}

	want, err := seq.EvolveBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	got, err := par.EvolveBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].State != want[i].State {
			t.Errorf("seed %d: state %s, want %s", i, got[i].State, want[i].State)
		}
		if got[i].Ticks != want[i].Ticks {
			t.Errorf("seed %d: ticks %d, want %d", i, got[i].Ticks, want[i].Ticks)
		}
		for c := range want[i].Attractor.Cells {
			if got[i].Attractor.Cells[c] != want[i].Attractor.Cells[c] {
				t.Fatalf("seed %d: attractor cell %d differs: %v vs %v",
					i, c, got[i].Attractor.Cells[c], want[i].Attractor.Cells[c])
			}
		}
		if len(got[i].History) != len(want[i].History) {
			t.Errorf("seed %d: history length %d, want %d", i, len(got[i].History), len(want[i].History))
		}
	}
}

func TestParallelMatchesScalarEvolve(t *testing.T) {
	seeds := testSeeds()
	params := dynamics.DefaultParams()

	par := &Parallel{Params: params, Workers: 3}
	got, err := par.EvolveBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	for i, seed := range seeds {
		want := dynamics.Evolve(seed, params)
		if got[i].State != want.State || got[i].Ticks != want.Ticks {
			t.Errorf("seed %d: got %s/%d, want %s/%d",
				i, got[i].State, got[i].Ticks, want.State, want.Ticks)
		}
		if diff := cmp.Diff(want.Attractor, got[i].Attractor); diff != "" {
			t.Errorf("seed %d: attractor mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestPerFrameTickCounts(t *testing.T) {
	// A high-amplitude checkerboard settles sooner than a low-amplitude
	// one, so a frame masked out early must not stall or truncate the rest.
	seeds := []*frame.Frame{
		checkerboard(16, 16, 0.9),
		checkerboard(16, 16, 0.1),
	}
	par := &Parallel{Params: dynamics.DefaultParams(), Workers: 2}
	got, err := par.EvolveBatch(context.Background(), seeds)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	for i, res := range got {
		if res.State != dynamics.StateConverged {
			t.Fatalf("seed %d: state %s, want %s", i, res.State, dynamics.StateConverged)
		}
		if len(res.History) != res.Ticks+1 {
			t.Errorf("seed %d: history length %d, want %d", i, len(res.History), res.Ticks+1)
		}
	}
	if got[0].Ticks >= got[1].Ticks {
		t.Errorf("expected high-amplitude seed to converge first: %d vs %d", got[0].Ticks, got[1].Ticks)
	}
}

func TestAttractorsAreFlat(t *testing.T) {
	par := &Parallel{Params: dynamics.DefaultParams(), Workers: 2}
	got, err := par.EvolveBatch(context.Background(), []*frame.Frame{noisy(16, 16, 7)})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	res := got[0]
	if res.State != dynamics.StateConverged {
		t.Skipf("seed did not converge: %s", res.State)
	}
	last := res.History[len(res.History)-1]
	prev := res.History[len(res.History)-2]
	if d := frame.MeanAbsDiff(last, prev); d >= dynamics.DefaultParams().Epsilon {
		t.Errorf("final delta %v not below epsilon", d)
	}
	if math.IsNaN(res.Attractor.Cells[0]) {
		t.Error("attractor contains NaN")
	}
}

func TestEmptyBatch(t *testing.T) {
	for _, ev := range []Evolver{
		&Sequential{Params: dynamics.DefaultParams()},
		&Parallel{Params: dynamics.DefaultParams()},
	} {
		got, err := ev.EvolveBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("%s: %v", ev.Name(), err)
		}
		if got != nil {
			t.Errorf("%s: expected nil results for empty batch", ev.Name())
		}
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, ev := range []Evolver{
		&Sequential{Params: dynamics.DefaultParams()},
		&Parallel{Params: dynamics.DefaultParams(), Workers: 2},
	} {
		if _, err := ev.EvolveBatch(ctx, testSeeds()); err == nil {
			t.Errorf("%s: expected error from cancelled context", ev.Name())
		}
	}
}

func TestNewHonorsEnv(t *testing.T) {
	t.Setenv(EnvNoParallel, "1")
	if ev := New(dynamics.DefaultParams(), nil); ev.Name() != "sequential" {
		t.Errorf("got %s, want sequential", ev.Name())
	}
}

func TestNewPicksParallel(t *testing.T) {
	t.Setenv(EnvNoParallel, "")
	ev := New(dynamics.DefaultParams(), nil)
	switch ev.Name() {
	case "parallel", "sequential":
	default:
		t.Errorf("unexpected evolver %q", ev.Name())
	}
}
