package inventory

import (
	"errors"
	"math"
	"testing"

	"time"

	"github.com/januhrhammer/dora/dbtypes"
)

// 2024-01-01 is a Monday in ISO week 1 (odd); 2024-01-08 opens ISO week 2
// (even).
var (
	oddWeekDay  = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	evenWeekDay = time.Date(2024, time.January, 8, 12, 0, 0, 0, time.UTC)
)

func TestCurrentWeekParity(t *testing.T) {
	if got := CurrentWeekParity(oddWeekDay); got != WeekOdd {
		t.Errorf("CurrentWeekParity(%v) = %v, want %v", oddWeekDay, got, WeekOdd)
	}
	if got := CurrentWeekParity(evenWeekDay); got != WeekEven {
		t.Errorf("CurrentWeekParity(%v) = %v, want %v", evenWeekDay, got, WeekEven)
	}
}

func TestDailyConsumptionDaily(t *testing.T) {
	d := &dbtypes.Drug{
		ScheduleType:    dbtypes.ScheduleDaily,
		MorningPreFood:  1,
		MorningPostFood: 0.5,
		EveningPreFood:  0,
		EveningPostFood: 1.5,
	}
	if got, want := DailyConsumption(d, oddWeekDay), 3.0; got != want {
		t.Errorf("DailyConsumption = %v, want %v", got, want)
	}
}

func TestDailyConsumptionAlternating(t *testing.T) {
	d := &dbtypes.Drug{
		ScheduleType:  dbtypes.ScheduleWeeklyAlternating,
		EvenWeekPills: 14,
		OddWeekPills:  7,
	}
	if got, want := DailyConsumption(d, evenWeekDay), 2.0; got != want {
		t.Errorf("DailyConsumption in even week = %v, want %v", got, want)
	}
	if got, want := DailyConsumption(d, oddWeekDay), 1.0; got != want {
		t.Errorf("DailyConsumption in odd week = %v, want %v", got, want)
	}
}

func TestDailyConsumptionAlternatingWithMorningAddend(t *testing.T) {
	// A fixed morning pill rides along with the alternating pack and must
	// not be folded into the pack total.
	d := &dbtypes.Drug{
		ScheduleType:    dbtypes.ScheduleWeeklyAlternating,
		MorningPreFood:  1,
		EvenWeekPills:   14,
		OddWeekPills:    7,
		EveningPostFood: 5, // inactive variant field, must not contribute
	}
	if got, want := DailyConsumption(d, evenWeekDay), 3.0; got != want {
		t.Errorf("DailyConsumption in even week = %v, want %v", got, want)
	}
	if got, want := DailyConsumption(d, oddWeekDay), 2.0; got != want {
		t.Errorf("DailyConsumption in odd week = %v, want %v", got, want)
	}
}

func TestZeroConsumptionNeverDivides(t *testing.T) {
	drugs := []*dbtypes.Drug{
		{ScheduleType: dbtypes.ScheduleDaily, CurrentAmount: 100},
		{ScheduleType: dbtypes.ScheduleWeeklyAlternating, CurrentAmount: 100},
	}
	for _, d := range drugs {
		if got := DaysRemaining(d, oddWeekDay); got != 0 {
			t.Errorf("DaysRemaining with zero consumption = %v, want 0", got)
		}
		if NeedsReorder(d, oddWeekDay) {
			t.Errorf("NeedsReorder with zero consumption = true, want false")
		}
	}
}

func TestRemainingAndReorderBoundary(t *testing.T) {
	d := &dbtypes.Drug{
		Name:            "Moxonidin",
		PackageSize:     30,
		ScheduleType:    dbtypes.ScheduleDaily,
		MorningPreFood:  1,
		EveningPostFood: 1,
		CurrentAmount:   42,
	}

	if got, want := DailyConsumption(d, oddWeekDay), 2.0; got != want {
		t.Errorf("DailyConsumption = %v, want %v", got, want)
	}
	if got, want := DaysRemaining(d, oddWeekDay), 21.0; got != want {
		t.Errorf("DaysRemaining = %v, want %v", got, want)
	}
	if got, want := WeeksRemaining(d, oddWeekDay), 3.0; got != want {
		t.Errorf("WeeksRemaining = %v, want %v", got, want)
	}
	// Exactly three weeks remaining is not below the threshold.
	if NeedsReorder(d, oddWeekDay) {
		t.Errorf("NeedsReorder at exactly 3 weeks = true, want false")
	}

	d.CurrentAmount = 20
	if got, want := DaysRemaining(d, oddWeekDay), 10.0; got != want {
		t.Errorf("DaysRemaining = %v, want %v", got, want)
	}
	if got, want := WeeksRemaining(d, oddWeekDay), 10.0/7; math.Abs(got-want) > 1e-9 {
		t.Errorf("WeeksRemaining = %v, want %v", got, want)
	}
	if !NeedsReorder(d, oddWeekDay) {
		t.Errorf("NeedsReorder below threshold = false, want true")
	}
}

func TestApplyRefill(t *testing.T) {
	d := &dbtypes.Drug{PackageSize: 30, CurrentAmount: 12}

	got, err := ApplyRefill(d, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := 72.0; got != want {
		t.Errorf("ApplyRefill(2) = %v, want %v", got, want)
	}

	for _, packages := range []int64{0, -1} {
		if _, err := ApplyRefill(d, packages); !errors.Is(err, ErrPackagesNotPositive) {
			t.Errorf("ApplyRefill(%d) error = %v, want ErrPackagesNotPositive", packages, err)
		}
	}
}

func TestApplyWeeklySubtraction(t *testing.T) {
	daily := &dbtypes.Drug{
		ScheduleType:    dbtypes.ScheduleDaily,
		MorningPreFood:  1,
		EveningPostFood: 1,
		CurrentAmount:   42,
	}
	if got, want := ApplyWeeklySubtraction(daily, oddWeekDay), 28.0; got != want {
		t.Errorf("ApplyWeeklySubtraction(daily) = %v, want %v", got, want)
	}

	alternating := &dbtypes.Drug{
		ScheduleType:  dbtypes.ScheduleWeeklyAlternating,
		EvenWeekPills: 14,
		OddWeekPills:  7,
		CurrentAmount: 10,
	}
	if got, want := ApplyWeeklySubtraction(alternating, evenWeekDay), 0.0; got != want {
		t.Errorf("ApplyWeeklySubtraction(even week) = %v, want %v (clamped)", got, want)
	}
	if got, want := ApplyWeeklySubtraction(alternating, oddWeekDay), 3.0; got != want {
		t.Errorf("ApplyWeeklySubtraction(odd week) = %v, want %v", got, want)
	}
}

func TestRepeatedSubtractionNeverGoesNegative(t *testing.T) {
	d := &dbtypes.Drug{
		PackageSize:     30,
		ScheduleType:    dbtypes.ScheduleDaily,
		MorningPostFood: 2,
		CurrentAmount:   0,
	}

	amount, err := ApplyRefill(d, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d.CurrentAmount = amount

	prev := d.CurrentAmount
	for i := 0; i < 10; i++ {
		d.CurrentAmount = ApplyWeeklySubtraction(d, oddWeekDay)
		if d.CurrentAmount > prev {
			t.Fatalf("Stock increased from %v to %v without a refill", prev, d.CurrentAmount)
		}
		if d.CurrentAmount < 0 {
			t.Fatalf("Stock went negative: %v", d.CurrentAmount)
		}
		prev = d.CurrentAmount
	}
	if d.CurrentAmount != 0 {
		t.Errorf("Stock after repeated subtraction = %v, want 0", d.CurrentAmount)
	}
}
