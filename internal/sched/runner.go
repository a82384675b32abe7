// Package sched runs the recurrence engine on a cron cadence.
package sched

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"maintrack.org/internal/maintenance"
	"maintrack.org/internal/obs"
)

// DefaultSpec scans for due schedules once a day, shortly after midnight UTC.
const DefaultSpec = "15 0 * * *"

// Runner drives maintenance.Engine.RunDue from a cron schedule. Overlapping
// ticks are harmless because the engine's conditional claim makes runs
// idempotent, but the runner still skips a tick while the previous one is
// in flight to avoid piling up.
type Runner struct {
	cron    *cron.Cron
	engine  *maintenance.Engine
	spec    string
	running atomic.Bool
}

// NewRunner builds a runner with the given cron spec. An empty spec uses
// DefaultSpec.
func NewRunner(engine *maintenance.Engine, spec string) *Runner {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Runner{
		cron:   cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		engine: engine,
		spec:   spec,
	}
}

// Start registers the tick and launches the cron loop. The given context
// bounds every engine pass.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() { r.tick(ctx) })
	if err != nil {
		return err
	}
	r.cron.Start()
	obs.LogEntry(map[string]any{
		"level": "info",
		"msg":   "scheduler started",
		"spec":  r.spec,
	})
	return nil
}

// Stop halts the cron loop and returns a context that is done once any
// in-flight tick finishes.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Runner) tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer r.running.Store(false)
	if _, err := r.engine.RunDue(ctx, "cron"); err != nil {
		obs.LogEntry(map[string]any{
			"level": "error",
			"msg":   "scheduler tick failed",
			"error": err.Error(),
		})
	}
}
