package maintenance

import (
	"context"
	"errors"
	"time"

	"maintrack.org/internal/obs"
)

const defaultScheduleTimeout = 10 * time.Second

// Engine scans for due schedules and turns each due cycle into exactly one
// work order. Runs are idempotent under overlap: the store's conditional
// advance guarantees a cycle claimed by one invocation is skipped by every
// other.
type Engine struct {
	store   Store
	now     func() time.Time
	timeout time.Duration
}

// EngineOption adjusts engine construction.
type EngineOption func(*Engine)

// WithEngineClock replaces the engine's time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithScheduleTimeout bounds the time spent on a single schedule.
func WithScheduleTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine builds a recurrence engine over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		now:     time.Now,
		timeout: defaultScheduleTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunReport summarizes one engine run.
type RunReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Total returns the number of due schedules the run looked at.
func (r RunReport) Total() int { return r.Processed + r.Failed + r.Skipped }

// RunDue processes every schedule due at the time of the call. One failing
// schedule does not stop the run; the per-schedule outcome is tallied in
// the report. The trigger label ("cron" or "manual") tags logs and metrics.
func (e *Engine) RunDue(ctx context.Context, trigger string) (RunReport, error) {
	now := e.now().UTC()
	due, err := e.store.DueSchedules(ctx, now)
	if err != nil {
		return RunReport{}, err
	}
	var report RunReport
	for _, s := range due {
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.runOnce(runCtx, s)
		cancel()
		switch {
		case err == nil:
			report.Processed++
		case errors.Is(err, ErrScheduleClaimed):
			report.Skipped++
		default:
			report.Failed++
			obs.LogEntry(map[string]any{
				"level":       "error",
				"msg":         "schedule run failed",
				"schedule_id": s.ID,
				"tenant_id":   s.TenantID,
				"trigger":     trigger,
				"error":       err.Error(),
			})
		}
	}
	obs.ObserveSchedulerRun(trigger, report.Processed, report.Failed, report.Skipped)
	if report.Total() > 0 {
		obs.LogEntry(map[string]any{
			"level":     "info",
			"msg":       "scheduler run complete",
			"trigger":   trigger,
			"processed": report.Processed,
			"failed":    report.Failed,
			"skipped":   report.Skipped,
		})
	}
	return report, nil
}

func (e *Engine) runOnce(ctx context.Context, s *Schedule) error {
	next, err := Advance(s.NextDue, s.Frequency)
	if err != nil {
		return err
	}
	wo := WorkOrderFromSchedule(s, e.now().UTC())
	return e.store.ExecuteSchedule(ctx, s.ID, s.NextDue, wo, next)
}
