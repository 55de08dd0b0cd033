// Package reminder decides which reminder emails to send and composes them.
//
// The engine is stateless between invocations except for the quarter marker,
// which lives behind the QuarterLedger collaborator so the quarterly
// first-order notice survives process restarts.
package reminder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/januhrhammer/dora/dbtypes"
	"github.com/januhrhammer/dora/inventory"
)

// DrugStore supplies the drug snapshot a reminder pass computes over.
type DrugStore interface {
	ListDrugs(ctx context.Context) ([]*dbtypes.Drug, error)
}

// VacationStore answers whether the doctor is away on a given day.
type VacationStore interface {
	CurrentVacation(ctx context.Context, ref time.Time) (*dbtypes.DoctorVacation, error)
}

// QuarterLedger persists the last calendar quarter for which the first-order
// notice went out.  An empty quarter means the notice has never been sent.
type QuarterLedger interface {
	LastNotifiedQuarter(ctx context.Context) (string, error)
	SetLastNotifiedQuarter(ctx context.Context, quarter string) error
}

// Sender delivers one composed email.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// Config carries the identity lines baked into the outgoing order letters.
type Config struct {
	// PatientName and PatientBirthDate appear in the reorder letter, e.g.
	// "Dora Langenhop" / "23.04.1937".
	PatientName      string
	PatientBirthDate string

	// Signature closes the reorder letter.
	Signature string
}

// Engine is the reminder policy engine.
type Engine struct {
	drugs     DrugStore
	vacations VacationStore
	ledger    QuarterLedger
	mail      Sender
	cfg       Config

	// Overridable for tests.
	now func() time.Time
}

func New(drugs DrugStore, vacations VacationStore, ledger QuarterLedger, mail Sender, cfg Config) *Engine {
	return &Engine{
		drugs:     drugs,
		vacations: vacations,
		ledger:    ledger,
		mail:      mail,
		cfg:       cfg,
		now:       time.Now,
	}
}

// QuarterOf names the calendar quarter of a moment, e.g. "2026-Q3".
func QuarterOf(t time.Time) string {
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}

type weeklyItem struct {
	Name           string
	DosageStrength string
	ScheduleLine   string
	CurrentAmount  string
	DaysRemaining  string
}

type weeklyParams struct {
	Drugs []weeklyItem
}

const weeklyPlain = `Hello! It's time to set up the medicines for the week.

Current medicine plan:
--------------------------------------------------
{{range .Drugs}}
* {{.Name}}{{if .DosageStrength}} ({{.DosageStrength}}){{end}}
  {{.ScheduleLine}}
  Pills remaining: {{.CurrentAmount}}
  Days remaining: {{.DaysRemaining}}
{{end}}
Have a great week!
`

var weeklyTemplate = template.Must(template.New("weekly").Parse(weeklyPlain))

// SendWeeklyReminder composes and sends the "prepare medicine" email.  It
// always includes every drug; the only gating is the caller's cadence.
func (e *Engine) SendWeeklyReminder(ctx context.Context) error {
	now := e.now()

	drugs, err := e.drugs.ListDrugs(ctx)
	if err != nil {
		return fmt.Errorf("while listing drugs: %w", err)
	}

	params := &weeklyParams{}
	for _, d := range drugs {
		item := weeklyItem{
			Name:           d.Name,
			DosageStrength: d.DosageStrength,
			CurrentAmount:  trimFloat(d.CurrentAmount),
			DaysRemaining:  fmt.Sprintf("%.1f", inventory.DaysRemaining(d, now)),
		}
		if d.ScheduleType == dbtypes.ScheduleWeeklyAlternating {
			item.ScheduleLine = fmt.Sprintf("Schedule: weekly alternating (%s week, %s pills this week)",
				inventory.CurrentWeekParity(now), trimFloat(inventory.CurrentWeekPills(d, now)))
		} else {
			item.ScheduleLine = fmt.Sprintf("Daily: %s pill(s)", trimFloat(inventory.DailyConsumption(d, now)))
		}
		params.Drugs = append(params.Drugs, item)
	}

	body := &bytes.Buffer{}
	if err := weeklyTemplate.Execute(body, params); err != nil {
		return fmt.Errorf("while templating weekly reminder: %w", err)
	}

	if err := e.mail.Send(ctx, "Weekly Medicine Reminder - Time to Set Up Pills", body.String()); err != nil {
		return fmt.Errorf("while sending weekly reminder: %w", err)
	}

	return nil
}

type reorderItem struct {
	Name           string
	DosageStrength string
	PackageSize    int64
	DaysRemaining  string
	WeeksRemaining string
}

type reorderParams struct {
	PatientName      string
	PatientBirthDate string
	Items            []reorderItem
	QuarterlyNotice  bool
	VacationUntil    string
	VacationNotes    string
	Signature        string
}

const reorderPlain = `Guten Tag,

es werden Rezepte benötigt für die folgenden Medikamente{{if .PatientName}} für {{.PatientName}}{{if .PatientBirthDate}}, geb. {{.PatientBirthDate}}{{end}}{{end}}.

{{range .Items}}- {{.Name}}{{if .DosageStrength}} {{.DosageStrength}}{{end}}, Packungsgröße: {{.PackageSize}} Tabletten (Vorrat: {{.DaysRemaining}} Tage / {{.WeeksRemaining}} Wochen)
{{end}}{{if .QuarterlyNotice}}
Hinweis: Dies ist die erste Bestellung im Quartal. Bitte die Versichertenkarte mitschicken.
{{end}}{{if .VacationUntil}}
Achtung: Die Arztpraxis ist bis {{.VacationUntil}} nicht erreichbar{{if .VacationNotes}} ({{.VacationNotes}}){{end}}.
{{end}}
Viele Grüße
{{.Signature}}
`

var reorderTemplate = template.Must(template.New("reorder").Parse(reorderPlain))

// SendReorderReminder checks every drug against the reorder threshold and,
// if any fall below it, sends the order letter.  Returns the number of drugs
// listed; zero means nothing needed reordering and no email went out.
//
// The quarterly first-order notice piggybacks on this letter: it is included
// when no notice has been recorded for the current calendar quarter, and the
// marker is advanced only after the send succeeds, so a failed send never
// swallows the notice.
func (e *Engine) SendReorderReminder(ctx context.Context) (int, error) {
	now := e.now()

	drugs, err := e.drugs.ListDrugs(ctx)
	if err != nil {
		return 0, fmt.Errorf("while listing drugs: %w", err)
	}

	var needy []*dbtypes.Drug
	for _, d := range drugs {
		if inventory.NeedsReorder(d, now) {
			needy = append(needy, d)
		}
	}
	if len(needy) == 0 {
		slog.InfoContext(ctx, "No drugs need reordering; skipping reorder reminder")
		return 0, nil
	}

	quarter := QuarterOf(now)
	lastNotified, err := e.ledger.LastNotifiedQuarter(ctx)
	if err != nil {
		return 0, fmt.Errorf("while reading quarter marker: %w", err)
	}
	quarterlyNotice := lastNotified != quarter

	vacation, err := e.vacations.CurrentVacation(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("while checking doctor vacation: %w", err)
	}

	params := &reorderParams{
		PatientName:      e.cfg.PatientName,
		PatientBirthDate: e.cfg.PatientBirthDate,
		QuarterlyNotice:  quarterlyNotice,
		Signature:        e.cfg.Signature,
	}
	for _, d := range needy {
		params.Items = append(params.Items, reorderItem{
			Name:           d.Name,
			DosageStrength: d.DosageStrength,
			PackageSize:    d.PackageSize,
			DaysRemaining:  fmt.Sprintf("%.1f", inventory.DaysRemaining(d, now)),
			WeeksRemaining: fmt.Sprintf("%.1f", inventory.WeeksRemaining(d, now)),
		})
	}
	if vacation != nil {
		// The letter still goes out; ordering stays actionable, the reader
		// just needs to plan around the practice being closed.
		params.VacationUntil = vacation.EndDate.Format("02.01.2006")
		params.VacationNotes = vacation.Notes
	}

	body := &bytes.Buffer{}
	if err := reorderTemplate.Execute(body, params); err != nil {
		return 0, fmt.Errorf("while templating reorder reminder: %w", err)
	}

	subject := "Medikamentenbestellung"
	if e.cfg.PatientName != "" {
		subject = subject + " - " + e.cfg.PatientName
	}

	if err := e.mail.Send(ctx, subject, body.String()); err != nil {
		return 0, fmt.Errorf("while sending reorder reminder: %w", err)
	}

	if quarterlyNotice {
		if err := e.ledger.SetLastNotifiedQuarter(ctx, quarter); err != nil {
			// The email is already out; at worst the notice repeats next
			// pass.  Still worth surfacing.
			return len(needy), fmt.Errorf("while advancing quarter marker: %w", err)
		}
	}

	slog.InfoContext(ctx, "Sent reorder reminder",
		slog.Int("drugs", len(needy)),
		slog.Bool("quarterlyNotice", quarterlyNotice),
		slog.Bool("doctorOnVacation", vacation != nil))
	return len(needy), nil
}

// SendTestEmail pushes a fixed fixture message through the transport to
// verify connectivity and credentials.  No gating, no data access.
func (e *Engine) SendTestEmail(ctx context.Context) error {
	body := "This is a test email from your medicine tracking system.\n\n" +
		"The email transport is working correctly.\n"
	if err := e.mail.Send(ctx, "Medicine Tracker - Test Email", body); err != nil {
		return fmt.Errorf("while sending test email: %w", err)
	}
	return nil
}

// trimFloat renders pill counts without a trailing ".0" but keeps half-pill
// fractions.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
