package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/logic/snapshot"
)

// Runner performs one capture-and-publish run.
type Runner interface {
	Run(ctx context.Context) snapshot.Outcome
}

// Parse validates a standard 5-field cron expression or a descriptor such as @hourly.
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// Scheduler triggers captures on a cron schedule. Scheduled runs share the
// capture gate with HTTP requests, so they queue behind an in-flight grab.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	expr   string
}

// New creates a scheduler for expr. A run still in progress when the next
// tick fires causes that tick to be skipped.
func New(expr string, runner Runner) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, runner: runner, expr: expr}
	c.Schedule(sched, cron.FuncJob(s.tick))
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled. It waits for an
// in-flight scheduled run to finish before returning.
func (s *Scheduler) Run(ctx context.Context) {
	debug.Info("Scheduler started (%s)", s.expr)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	debug.Info("Scheduler stopped")
}

func (s *Scheduler) tick() {
	debug.Live("Scheduler: triggering capture")
	s.runner.Run(context.Background())
}
