package reminder

import (
	"context"
	"testing"
	"time"
)

func TestNextFireTimeDaily(t *testing.T) {
	job := &Job{ID: "reorder-check", Hour: 10, Minute: 0}

	cases := []struct {
		after time.Time
		want  time.Time
	}{
		{
			// Before today's slot: fires today.
			time.Date(2026, time.August, 23, 9, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 23, 10, 0, 0, 0, time.UTC),
		},
		{
			// Exactly at the slot: fires tomorrow, never twice in a day.
			time.Date(2026, time.August, 23, 10, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC),
		},
		{
			// After the slot: fires tomorrow.
			time.Date(2026, time.August, 23, 11, 30, 0, 0, time.UTC),
			time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		if got := job.NextFireTime(c.after); !got.Equal(c.want) {
			t.Errorf("NextFireTime(%v) = %v, want %v", c.after, got, c.want)
		}
	}
}

func TestNextFireTimeWeekly(t *testing.T) {
	sunday := time.Sunday
	job := &Job{ID: "weekly-prepare", Weekday: &sunday, Hour: 9, Minute: 0}

	cases := []struct {
		after time.Time
		want  time.Time
	}{
		{
			// 2026-08-23 is a Sunday; before the slot it fires the same day.
			time.Date(2026, time.August, 23, 8, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 23, 9, 0, 0, 0, time.UTC),
		},
		{
			// After Sunday's slot: a full week out.
			time.Date(2026, time.August, 23, 9, 30, 0, 0, time.UTC),
			time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			// Midweek: the upcoming Sunday.
			time.Date(2026, time.August, 26, 12, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		if got := job.NextFireTime(c.after); !got.Equal(c.want) {
			t.Errorf("NextFireTime(%v) = %v, want %v", c.after, got, c.want)
		}
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := NewScheduler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
