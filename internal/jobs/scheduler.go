// Package jobs runs the periodic maintenance sweeps on fixed intervals.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/observability"
)

// Runner is one sweep. It reports how many rows it acted on.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

type RunnerFunc func(ctx context.Context) (int, error)

func (f RunnerFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

type job struct {
	name     string
	interval time.Duration
	runner   Runner
}

type Scheduler struct {
	jobs []job
	wg   sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. Jobs with a non-positive interval are skipped.
func (s *Scheduler) Add(name string, interval time.Duration, runner Runner) {
	if interval <= 0 {
		slog.Warn("job disabled", "job", name)
		return
	}
	s.jobs = append(s.jobs, job{name: name, interval: interval, runner: runner})
}

// Start launches one goroutine per job. Each waits a full interval before
// the first run, and a run never overlaps the previous one of the same job.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go func(j job) {
			defer s.wg.Done()
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			slog.Info("job scheduled", "job", j.name, "interval", j.interval)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runOnce(ctx, j)
				}
			}
		}(j)
	}
}

// Wait blocks until every job goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func runOnce(ctx context.Context, j job) {
	start := time.Now()
	n, err := j.runner.Run(ctx)
	if err != nil {
		observability.JobRuns.WithLabelValues(j.name, "error").Inc()
		slog.Error("job failed", "job", j.name, "processed", n, "duration", time.Since(start), "error", err)
		return
	}
	observability.JobRuns.WithLabelValues(j.name, "success").Inc()
	if n > 0 {
		slog.Info("job finished", "job", j.name, "processed", n, "duration", time.Since(start))
	}
}
