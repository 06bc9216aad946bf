// Package adapter provides adapters for framedsock integration with external systems.
package adapter

import (
	"fmt"
	"os"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthOptions configures NewHealthHandler.
type HealthOptions struct {
	// MaxOpenFDs fails readiness once the process holds more descriptors. Zero disables the check.
	MaxOpenFDs int32
	// MaxGoroutines fails liveness once exceeded. Zero disables the check.
	MaxGoroutines int
	// Ready is an extra readiness check, e.g. "listener is accepting".
	Ready func() error
}

// NewHealthHandler returns a handler serving /live and /ready.
func NewHealthHandler(opts HealthOptions) (healthcheck.Handler, error) {
	h := healthcheck.NewHandler()
	if opts.MaxGoroutines > 0 {
		h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.MaxGoroutines))
	}
	if opts.MaxOpenFDs > 0 {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("inspect process: %w", err)
		}
		h.AddReadinessCheck("open-descriptors", openFDCheck(proc, opts.MaxOpenFDs))
	}
	if opts.Ready != nil {
		h.AddReadinessCheck("ready", opts.Ready)
	}
	return h, nil
}

func openFDCheck(proc *process.Process, max int32) healthcheck.Check {
	return func() error {
		n, err := proc.NumFDs()
		if err != nil {
			return fmt.Errorf("count descriptors: %w", err)
		}
		if n > max {
			return fmt.Errorf("%d open descriptors, limit %d", n, max)
		}
		return nil
	}
}
