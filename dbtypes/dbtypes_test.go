package dbtypes

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateOf(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("while loading location: %v", err)
	}

	testCases := []struct {
		in   time.Time
		want time.Time
	}{
		{date(2026, time.August, 23), date(2026, time.August, 23)},
		{time.Date(2026, time.August, 23, 23, 59, 59, 0, time.UTC), date(2026, time.August, 23)},
		// 00:30 Berlin summer time is still the previous day in UTC.
		{time.Date(2026, time.August, 23, 0, 30, 0, 0, berlin), date(2026, time.August, 22)},
	}

	for _, tc := range testCases {
		got := DateOf(tc.in)
		if !got.Equal(tc.want) {
			t.Errorf("DateOf(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVacationPhases(t *testing.T) {
	vacation := &DoctorVacation{
		StartDate: date(2026, time.August, 20),
		EndDate:   date(2026, time.September, 2),
	}

	testCases := []struct {
		name         string
		ref          time.Time
		wantCurrent  bool
		wantUpcoming bool
		wantPast     bool
	}{
		{"before start", date(2026, time.August, 19), false, true, false},
		{"on start day", date(2026, time.August, 20), true, false, false},
		{"mid period", date(2026, time.August, 25), true, false, false},
		{"on end day", date(2026, time.September, 2), true, false, false},
		{"after end", date(2026, time.September, 3), false, false, true},
		{"late in end day", time.Date(2026, time.September, 2, 23, 0, 0, 0, time.UTC), true, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := vacation.IsCurrent(tc.ref); got != tc.wantCurrent {
				t.Errorf("IsCurrent(%v) = %v, want %v", tc.ref, got, tc.wantCurrent)
			}
			if got := vacation.IsUpcoming(tc.ref); got != tc.wantUpcoming {
				t.Errorf("IsUpcoming(%v) = %v, want %v", tc.ref, got, tc.wantUpcoming)
			}
			if got := vacation.IsPast(tc.ref); got != tc.wantPast {
				t.Errorf("IsPast(%v) = %v, want %v", tc.ref, got, tc.wantPast)
			}
		})
	}
}

func TestDrugPatchApply(t *testing.T) {
	newName := "Moxonidin"
	newAmount := 42.0
	patch := &DrugPatch{
		Name:          &newName,
		CurrentAmount: &newAmount,
	}

	got := &Drug{
		ID:             "drug-1",
		Name:           "Old Name",
		DosageStrength: "0.3mg",
		PackageSize:    100,
		ScheduleType:   ScheduleDaily,
		MorningPreFood: 1,
		CurrentAmount:  10,
	}
	patch.Apply(got)

	want := &Drug{
		ID:             "drug-1",
		Name:           "Moxonidin",
		DosageStrength: "0.3mg",
		PackageSize:    100,
		ScheduleType:   ScheduleDaily,
		MorningPreFood: 1,
		CurrentAmount:  42,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Wrong drug after patch; diff (-got +want)\n%s", diff)
	}
}

func TestVacationPatchNormalizesDates(t *testing.T) {
	start := time.Date(2026, time.August, 20, 14, 30, 0, 0, time.UTC)
	patch := &DoctorVacationPatch{
		StartDate: &start,
	}

	vacation := &DoctorVacation{
		StartDate: date(2026, time.August, 1),
		EndDate:   date(2026, time.September, 2),
	}
	patch.Apply(vacation)

	if want := date(2026, time.August, 20); !vacation.StartDate.Equal(want) {
		t.Errorf("StartDate = %v, want %v", vacation.StartDate, want)
	}
	if want := date(2026, time.September, 2); !vacation.EndDate.Equal(want) {
		t.Errorf("EndDate = %v, want %v", vacation.EndDate, want)
	}
}
