package batch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

// Parallel advances the whole batch in lockstep: every tick, the frames
// still evolving are partitioned across workers, stepped once, then
// checked for convergence and oscillation on a single goroutine. A frame
// that settles is masked out of later ticks while the rest continue
// toward the shared budget. The per-cell rule is the scalar Step, so a
// batch run and a per-frame scalar run produce identical results.
type Parallel struct {
	Params  dynamics.Params
	Workers int
}

func (p *Parallel) Name() string { return "parallel" }

func (p *Parallel) EvolveBatch(ctx context.Context, seeds []*frame.Frame) ([]*dynamics.Result, error) {
	n := len(seeds)
	if n == 0 {
		return nil, nil
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cur := make([]*frame.Frame, n)
	next := make([]*frame.Frame, n)
	delta := make([]float64, n)
	histories := make([][]*frame.Frame, n)
	results := make([]*dynamics.Result, n)

	active := make([]int, 0, n)
	for i, seed := range seeds {
		cur[i] = seed.Clone()
		histories[i] = append(make([]*frame.Frame, 0, 64), cur[i].Clone())
		active = append(active, i)
	}

	par := p.Params
	for tick := 0; tick < par.MaxTicks && len(active) > 0; tick++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		span := (len(active) + workers - 1) / workers
		g, gctx := errgroup.WithContext(ctx)
		for lo := 0; lo < len(active); lo += span {
			hi := lo + span
			if hi > len(active) {
				hi = len(active)
			}
			part := active[lo:hi]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				for _, idx := range part {
					next[idx] = dynamics.Step(cur[idx], par)
					delta[idx] = frame.MeanAbsDiff(next[idx], cur[idx])
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		still := active[:0]
		for _, idx := range active {
			cur[idx] = next[idx]
			histories[idx] = append(histories[idx], cur[idx].Clone())

			if delta[idx] < par.Epsilon {
				results[idx] = &dynamics.Result{
					State:     dynamics.StateConverged,
					Attractor: cur[idx],
					Ticks:     tick + 1,
					History:   histories[idx],
				}
				continue
			}

			if tick > par.OscCheckAfter && tick%par.OscCheckEvery == 0 {
				if osc := dynamics.DetectOscillation(histories[idx], par); osc != nil {
					results[idx] = &dynamics.Result{
						State:     dynamics.StateOscillating,
						Attractor: cur[idx],
						Ticks:     tick + 1,
						History:   histories[idx],
						Cycle:     osc,
					}
					continue
				}
			}

			still = append(still, idx)
		}
		active = still
	}

	for _, idx := range active {
		results[idx] = &dynamics.Result{
			State:     dynamics.StateChaotic,
			Attractor: cur[idx],
			Ticks:     par.MaxTicks,
			History:   histories[idx],
		}
	}
	return results, nil
}
