package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"
)

// Job is a named task run on a cron schedule. Specs use the six-field
// format with seconds, or descriptors such as "@hourly" and "@every 15m".
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on their cron schedules. A job never overlaps with a
// previous run of itself.
type Scheduler struct {
	jobs []Job

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopped  bool
	cron     *cron.Cron
	inflight sync.WaitGroup
	busy     map[string]bool
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, busy: map[string]bool{}}
}

// Start registers every job and starts the cron loop. It returns an error if
// already running or if a spec does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.stopped {
		return fmt.Errorf("scheduler has been stopped")
	}

	c := cron.New()
	for _, job := range s.jobs {
		if err := c.AddFunc(job.Spec, func() { s.RunNow(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		slog.InfoContext(ctx, "Job scheduled", "job", job.Name, "spec", job.Spec)
	}
	c.Start()
	s.cron = c
	s.running = true
	return nil
}

// RunNow runs job immediately unless a run of it is still in progress or the
// scheduler has been stopped.
func (s *Scheduler) RunNow(ctx context.Context, job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.busy[job.Name] {
		s.mu.Unlock()
		slog.WarnContext(ctx, "Skipping job, previous run still in progress", "job", job.Name)
		return
	}
	s.busy[job.Name] = true
	s.inflight.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy[job.Name] = false
		s.mu.Unlock()
		s.inflight.Done()
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "Job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return
	}
	slog.InfoContext(ctx, "Job completed", "job", job.Name, "duration", time.Since(start))
}

// Stop halts the schedule and waits for running jobs or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cron.Stop()
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
