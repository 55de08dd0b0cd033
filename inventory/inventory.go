// Package inventory computes derived stock metrics for a drug snapshot.
//
// Every function here is a pure function of a Drug value and a reference
// moment; nothing reads the wall clock.  Callers that want "now" semantics
// pass time.Now() explicitly, which keeps the week-parity and remaining-days
// math testable against fixed dates.
package inventory

import (
	"errors"
	"time"

	"github.com/januhrhammer/dora/dbtypes"
)

// ReorderThresholdWeeks is the remaining-stock boundary below which a drug
// lands on the reorder list.  Deliberately not configurable per drug.
const ReorderThresholdWeeks = 3.0

// ErrPackagesNotPositive is returned by ApplyRefill for a zero or negative
// package count.  A refill of nothing is a caller bug, not a no-op.
var ErrPackagesNotPositive = errors.New("refill packages must be a positive integer")

// WeekParity identifies the alternating-week bucket of a calendar week.
type WeekParity string

const (
	WeekEven WeekParity = "even"
	WeekOdd  WeekParity = "odd"
)

// CurrentWeekParity derives the parity of the reference moment's ISO week
// number.
func CurrentWeekParity(ref time.Time) WeekParity {
	_, week := ref.ISOWeek()
	if week%2 == 0 {
		return WeekEven
	}
	return WeekOdd
}

// CurrentWeekPills returns the weekly pack total that applies during the
// reference moment's week.  Zero for drugs that are not weekly-alternating.
func CurrentWeekPills(d *dbtypes.Drug, ref time.Time) float64 {
	if d.ScheduleType != dbtypes.ScheduleWeeklyAlternating {
		return 0
	}
	if CurrentWeekParity(ref) == WeekEven {
		return d.EvenWeekPills
	}
	return d.OddWeekPills
}

// DailyConsumption returns the pills consumed per day under the drug's
// active schedule.
//
// For the weekly-alternating schedule, the morning dose fields are added on
// top of the per-day share of the weekly pack.  This models a fixed daily
// pill taken alongside the alternating pack and is intentionally not folded
// into the pack total.
func DailyConsumption(d *dbtypes.Drug, ref time.Time) float64 {
	if d.ScheduleType == dbtypes.ScheduleWeeklyAlternating {
		return CurrentWeekPills(d, ref)/7 + d.MorningPreFood + d.MorningPostFood
	}
	return d.MorningPreFood + d.MorningPostFood + d.EveningPreFood + d.EveningPostFood
}

// DaysRemaining returns how many days the current stock lasts.  A drug with
// no active dosing has zero days remaining rather than infinitely many.
func DaysRemaining(d *dbtypes.Drug, ref time.Time) float64 {
	consumption := DailyConsumption(d, ref)
	if consumption == 0 {
		return 0
	}
	return d.CurrentAmount / consumption
}

// WeeksRemaining returns how many weeks the current stock lasts.
func WeeksRemaining(d *dbtypes.Drug, ref time.Time) float64 {
	return DaysRemaining(d, ref) / 7
}

// NeedsReorder reports whether remaining stock has fallen below the reorder
// threshold.  Exactly three weeks remaining does not trigger a reorder, and a
// drug with no active dosing is never a reorder candidate.
func NeedsReorder(d *dbtypes.Drug, ref time.Time) bool {
	if DailyConsumption(d, ref) == 0 {
		return false
	}
	return WeeksRemaining(d, ref) < ReorderThresholdWeeks
}

// ApplyWeeklySubtraction returns the stock level after deducting one week of
// consumption, clamped at zero.  This is the explicit "pills sorted into the
// weekly dispenser" bulk operation; stock is not decremented in real time.
func ApplyWeeklySubtraction(d *dbtypes.Drug, ref time.Time) float64 {
	var week float64
	if d.ScheduleType == dbtypes.ScheduleWeeklyAlternating {
		week = CurrentWeekPills(d, ref)
	} else {
		week = 7 * (d.MorningPreFood + d.MorningPostFood + d.EveningPreFood + d.EveningPostFood)
	}

	remaining := d.CurrentAmount - week
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ApplyRefill returns the stock level after adding the given number of whole
// packages.
func ApplyRefill(d *dbtypes.Drug, packages int64) (float64, error) {
	if packages <= 0 {
		return 0, ErrPackagesNotPositive
	}
	return d.CurrentAmount + float64(packages)*float64(d.PackageSize), nil
}
