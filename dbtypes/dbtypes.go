// Package dbtypes defines the values persisted in Firestore.
package dbtypes

import (
	"time"
)

// ScheduleType selects which dosing variant of a Drug is active.
type ScheduleType string

const (
	// ScheduleDaily doses a fixed number of pills every day, split across
	// four morning/evening pre/post-food slots.
	ScheduleDaily ScheduleType = "daily"

	// ScheduleWeeklyAlternating doses a weekly pill total that alternates
	// with the ISO week parity of the calendar.
	ScheduleWeeklyAlternating ScheduleType = "weekly_alternating"
)

// Drug is one medicine in the household medicine plan.
//
// All pill quantities are float64 because split pills are tracked as 0.5
// units.  Only the fields of the active schedule variant contribute to
// consumption math, with one exception: the morning dose fields remain
// additive under the weekly-alternating schedule, modeling a fixed daily
// pill taken alongside the alternating weekly pack.
type Drug struct {
	ID string `firestore:"id" json:"id"`

	Name string `firestore:"name" json:"name"`

	// A display string for the strength of one unit, e.g. "75µg" or "100mg".
	DosageStrength string `firestore:"dosageStrength" json:"dosage_strength"`

	// Pills per package, used to convert refilled packages into pills.
	PackageSize int64 `firestore:"packageSize" json:"package_size"`

	ScheduleType ScheduleType `firestore:"scheduleType" json:"schedule_type"`

	MorningPreFood  float64 `firestore:"morningPreFood" json:"morning_pre_food"`
	MorningPostFood float64 `firestore:"morningPostFood" json:"morning_post_food"`
	EveningPreFood  float64 `firestore:"eveningPreFood" json:"evening_pre_food"`
	EveningPostFood float64 `firestore:"eveningPostFood" json:"evening_post_food"`

	// Total pills consumed during an even / odd ISO week.  Only meaningful
	// for ScheduleWeeklyAlternating.
	EvenWeekPills float64 `firestore:"evenWeekPills" json:"even_week_pills"`
	OddWeekPills  float64 `firestore:"oddWeekPills" json:"odd_week_pills"`

	// Pills currently on hand.  Never negative; depletion clamps at zero.
	CurrentAmount float64 `firestore:"currentAmount" json:"current_amount"`

	Notes string `firestore:"notes" json:"notes"`

	// Zero value means the drug has never been refilled.
	LastRefilledAt time.Time `firestore:"lastRefilledAt" json:"last_refilled_at,omitzero"`

	CreatedAt time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updated_at"`
}

// DrugPatch is a partial update to a Drug.  Nil fields are left untouched,
// so "field omitted" and "field set to zero" stay distinguishable.
type DrugPatch struct {
	Name            *string       `json:"name"`
	DosageStrength  *string       `json:"dosage_strength"`
	PackageSize     *int64        `json:"package_size"`
	ScheduleType    *ScheduleType `json:"schedule_type"`
	MorningPreFood  *float64      `json:"morning_pre_food"`
	MorningPostFood *float64      `json:"morning_post_food"`
	EveningPreFood  *float64      `json:"evening_pre_food"`
	EveningPostFood *float64      `json:"evening_post_food"`
	EvenWeekPills   *float64      `json:"even_week_pills"`
	OddWeekPills    *float64      `json:"odd_week_pills"`
	CurrentAmount   *float64      `json:"current_amount"`
	Notes           *string       `json:"notes"`
}

// Apply copies the present fields of the patch onto the drug.
func (p *DrugPatch) Apply(d *Drug) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.DosageStrength != nil {
		d.DosageStrength = *p.DosageStrength
	}
	if p.PackageSize != nil {
		d.PackageSize = *p.PackageSize
	}
	if p.ScheduleType != nil {
		d.ScheduleType = *p.ScheduleType
	}
	if p.MorningPreFood != nil {
		d.MorningPreFood = *p.MorningPreFood
	}
	if p.MorningPostFood != nil {
		d.MorningPostFood = *p.MorningPostFood
	}
	if p.EveningPreFood != nil {
		d.EveningPreFood = *p.EveningPreFood
	}
	if p.EveningPostFood != nil {
		d.EveningPostFood = *p.EveningPostFood
	}
	if p.EvenWeekPills != nil {
		d.EvenWeekPills = *p.EvenWeekPills
	}
	if p.OddWeekPills != nil {
		d.OddWeekPills = *p.OddWeekPills
	}
	if p.CurrentAmount != nil {
		d.CurrentAmount = *p.CurrentAmount
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
}

// DoctorVacation is a period during which the prescribing doctor is
// unavailable.  StartDate and EndDate are inclusive calendar dates stored at
// midnight UTC.
type DoctorVacation struct {
	ID string `firestore:"id" json:"id"`

	StartDate time.Time `firestore:"startDate" json:"start_date"`
	EndDate   time.Time `firestore:"endDate" json:"end_date"`

	Notes string `firestore:"notes" json:"notes"`

	CreatedAt time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updated_at"`
}

// DateOf truncates a moment to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsCurrent reports whether the reference moment falls on a day inside the
// vacation period, inclusive of both ends.
func (v *DoctorVacation) IsCurrent(ref time.Time) bool {
	day := DateOf(ref)
	return !day.Before(DateOf(v.StartDate)) && !day.After(DateOf(v.EndDate))
}

// IsUpcoming reports whether the vacation starts after the reference day.
func (v *DoctorVacation) IsUpcoming(ref time.Time) bool {
	return DateOf(v.StartDate).After(DateOf(ref))
}

// IsPast reports whether the vacation ended before the reference day.
func (v *DoctorVacation) IsPast(ref time.Time) bool {
	return DateOf(v.EndDate).Before(DateOf(ref))
}

// DoctorVacationPatch is a partial update to a DoctorVacation.
type DoctorVacationPatch struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Notes     *string    `json:"notes"`
}

// Apply copies the present fields of the patch onto the vacation.
func (p *DoctorVacationPatch) Apply(v *DoctorVacation) {
	if p.StartDate != nil {
		v.StartDate = DateOf(*p.StartDate)
	}
	if p.EndDate != nil {
		v.EndDate = DateOf(*p.EndDate)
	}
	if p.Notes != nil {
		v.Notes = *p.Notes
	}
}

// ReminderLedger records cross-invocation reminder state.  Currently the
// only fact tracked is the last calendar quarter for which the first-order
// notice went out, so the notice fires at most once per quarter even across
// process restarts.
type ReminderLedger struct {
	LastNotifiedQuarter string `firestore:"lastNotifiedQuarter"`
}
