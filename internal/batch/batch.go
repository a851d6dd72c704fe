// Package batch evolves many frames under one shared tick budget.
// Parallelism is across the batch dimension only; a single frame's tick
// chain is inherently sequential and never split. Both implementations
// run the identical per-cell rule, so their outputs agree exactly.
package batch

import (
	"context"

	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

// Evolver evolves a set of seed frames to classified outcomes. Callers
// receive one result per seed, in order, and never learn which
// implementation ran.
type Evolver interface {
	EvolveBatch(ctx context.Context, seeds []*frame.Frame) ([]*dynamics.Result, error)
	Name() string
}

// Sequential is the reference path: the scalar engine in a loop.
type Sequential struct {
	Params dynamics.Params
}

func (s *Sequential) Name() string { return "sequential" }

func (s *Sequential) EvolveBatch(ctx context.Context, seeds []*frame.Frame) ([]*dynamics.Result, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	results := make([]*dynamics.Result, len(seeds))
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = dynamics.Evolve(seed, s.Params)
	}
	return results, nil
}
