package reminder

import (
	"context"
	"log/slog"
	"time"
)

// Job is a callback registered with the Scheduler under a cron-like cadence:
// a time of day, optionally pinned to one weekday.  A nil Weekday fires
// every day.
type Job struct {
	ID      string
	Weekday *time.Weekday
	Hour    int
	Minute  int
	Run     func(ctx context.Context) error
}

// NextFireTime returns the first moment strictly after the given one at
// which the job's cadence matches.
func (j *Job) NextFireTime(after time.Time) time.Time {
	candidate := time.Date(after.Year(), after.Month(), after.Day(), j.Hour, j.Minute, 0, 0, after.Location())
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if j.Weekday != nil {
		for candidate.Weekday() != *j.Weekday {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}
	return candidate
}

// Scheduler drives registered jobs on their cadences.  It is an injected
// collaborator rather than a process-global registry: tests exercise job
// callbacks and fire-time math directly, without waiting on the wall clock.
type Scheduler struct {
	jobs []*Job

	// Overridable for tests.
	clock func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		clock: time.Now,
	}
}

// AddJob registers a job.  Must be called before Run.
func (s *Scheduler) AddJob(job *Job) {
	s.jobs = append(s.jobs, job)
}

// Run blocks, firing each job at its scheduled moments until the context is
// canceled.  A failing job is logged and left on its cadence; the next tick
// still runs.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	next := make([]time.Time, len(s.jobs))
	for i, job := range s.jobs {
		next[i] = job.NextFireTime(s.clock())
		slog.InfoContext(ctx, "Scheduled job",
			slog.String("job", job.ID),
			slog.Time("nextFire", next[i]))
	}

	for {
		soonest := 0
		for i := range next {
			if next[i].Before(next[soonest]) {
				soonest = i
			}
		}

		timer := time.NewTimer(next[soonest].Sub(s.clock()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		job := s.jobs[soonest]
		slog.InfoContext(ctx, "Running scheduled job", slog.String("job", job.ID))
		if err := job.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled job failed",
				slog.String("job", job.ID),
				slog.Any("err", err))
		}

		next[soonest] = job.NextFireTime(s.clock())
		slog.InfoContext(ctx, "Job rescheduled",
			slog.String("job", job.ID),
			slog.Time("nextFire", next[soonest]))
	}
}
