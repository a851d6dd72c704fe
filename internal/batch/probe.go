package batch

import (
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/dynamics"
)

// EnvNoParallel forces the sequential path when set to any value.
const EnvNoParallel = "ENGRAM_NO_PARALLEL"

// New probes the host once and picks an evolver. The parallel path needs
// at least two CPUs; ENGRAM_NO_PARALLEL turns it off outright. Either
// way the caller gets a working Evolver, never an error.
func New(params dynamics.Params, log *zap.Logger) Evolver {
	if log == nil {
		log = zap.NewNop()
	}
	if os.Getenv(EnvNoParallel) != "" {
		log.Debug("batch acceleration disabled by environment")
		return &Sequential{Params: params}
	}
	cpus := runtime.NumCPU()
	if cpus < 2 {
		log.Debug("batch acceleration unavailable", zap.Int("cpus", cpus))
		return &Sequential{Params: params}
	}
	log.Debug("batch acceleration enabled", zap.Int("workers", cpus))
	return &Parallel{Params: params, Workers: cpus}
}
