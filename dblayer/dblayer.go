// Package dblayer packages up most actual Firestore accesses.
package dblayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/januhrhammer/dora/dbtypes"
	"github.com/januhrhammer/dora/inventory"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	drugsCollection     = "Drugs"
	vacationsCollection = "DoctorVacations"
	ledgerCollection    = "ReminderLedger"

	// Single well-known document holding the quarterly-notice marker.
	ledgerDoc = "quarterly-order"
)

var (
	ErrDrugNotFound            = errors.New("no drug with that id")
	ErrVacationNotFound        = errors.New("no doctor vacation with that id")
	ErrNameMustNotBeEmpty      = errors.New("drug name must not be empty")
	ErrPackageSizeNotPositive  = errors.New("package size must be a positive integer")
	ErrUnknownScheduleType     = errors.New("schedule type must be daily or weekly_alternating")
	ErrDoseMustNotBeNegative   = errors.New("dose fields must not be negative")
	ErrAmountMustNotBeNegative = errors.New("current amount must not be negative")
	ErrEndBeforeStart          = errors.New("vacation end date must not precede its start date")
)

type DB struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *DB {
	return &DB{
		firestoreClient: firestoreClient,
	}
}

func validateDrug(d *dbtypes.Drug) error {
	if d.Name == "" {
		return ErrNameMustNotBeEmpty
	}
	if d.PackageSize <= 0 {
		return ErrPackageSizeNotPositive
	}
	switch d.ScheduleType {
	case dbtypes.ScheduleDaily, dbtypes.ScheduleWeeklyAlternating:
	default:
		return ErrUnknownScheduleType
	}
	doses := []float64{
		d.MorningPreFood, d.MorningPostFood, d.EveningPreFood, d.EveningPostFood,
		d.EvenWeekPills, d.OddWeekPills,
	}
	for _, dose := range doses {
		if dose < 0 {
			return ErrDoseMustNotBeNegative
		}
	}
	if d.CurrentAmount < 0 {
		return ErrAmountMustNotBeNegative
	}
	return nil
}

func validateVacation(v *dbtypes.DoctorVacation) error {
	if v.EndDate.Before(v.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// ListDrugs returns a snapshot of every drug in the plan.
func (db *DB) ListDrugs(ctx context.Context) ([]*dbtypes.Drug, error) {
	var drugs []*dbtypes.Drug

	drugIter := db.firestoreClient.Collection(drugsCollection).OrderBy("name", firestore.Asc).Documents(ctx)
	defer drugIter.Stop()
	for {
		drugSnapshot, err := drugIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating drugs: %w", err)
		}

		drug := &dbtypes.Drug{}
		if err := drugSnapshot.DataTo(drug); err != nil {
			return nil, fmt.Errorf("while unmarshaling drug %s: %w", drugSnapshot.Ref.ID, err)
		}
		drugs = append(drugs, drug)
	}

	return drugs, nil
}

// GetDrug looks up a single drug by ID.
func (db *DB) GetDrug(ctx context.Context, id string) (*dbtypes.Drug, error) {
	docSnap, err := db.firestoreClient.Collection(drugsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrDrugNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving drug %s: %w", id, err)
	}

	drug := &dbtypes.Drug{}
	if err := docSnap.DataTo(drug); err != nil {
		return nil, fmt.Errorf("while unmarshaling drug %s: %w", id, err)
	}

	return drug, nil
}

// CreateDrug stores a new drug and stamps its metadata.
func (db *DB) CreateDrug(ctx context.Context, drug *dbtypes.Drug) (*dbtypes.Drug, error) {
	if err := validateDrug(drug); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	drug.CreatedAt = now
	drug.UpdatedAt = now

	newDrugRef := db.firestoreClient.Collection(drugsCollection).NewDoc()
	drug.ID = newDrugRef.ID
	if _, err := newDrugRef.Create(ctx, drug); err != nil {
		return nil, fmt.Errorf("while creating drug: %w", err)
	}

	slog.InfoContext(ctx, "Created drug", slog.String("id", drug.ID), slog.String("name", drug.Name))
	return drug, nil
}

// mutateDrug runs a read-modify-write cycle on one drug inside a Firestore
// transaction and stamps updatedAt.
func (db *DB) mutateDrug(ctx context.Context, id string, mutate func(*dbtypes.Drug) error) (*dbtypes.Drug, error) {
	drugRef := db.firestoreClient.Collection(drugsCollection).Doc(id)

	var drug *dbtypes.Drug
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		docSnap, err := txn.Get(drugRef)
		if status.Code(err) == codes.NotFound {
			return ErrDrugNotFound
		}
		if err != nil {
			return fmt.Errorf("while reading drug: %w", err)
		}

		// The transaction function can run more than once; rebuild the drug
		// from the snapshot each attempt.
		drug = &dbtypes.Drug{}
		if err := docSnap.DataTo(drug); err != nil {
			return fmt.Errorf("while unmarshaling drug: %w", err)
		}

		if err := mutate(drug); err != nil {
			return err
		}

		drug.UpdatedAt = time.Now().UTC()
		if err := txn.Set(drugRef, drug); err != nil {
			return fmt.Errorf("while writing drug: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDrugNotFound) {
			return nil, ErrDrugNotFound
		}
		return nil, fmt.Errorf("while updating drug %s: %w", id, err)
	}

	return drug, nil
}

// UpdateDrug applies the present fields of the patch to the stored drug.
func (db *DB) UpdateDrug(ctx context.Context, id string, patch dbtypes.DrugPatch) (*dbtypes.Drug, error) {
	drug, err := db.mutateDrug(ctx, id, func(d *dbtypes.Drug) error {
		patch.Apply(d)
		return validateDrug(d)
	})
	if err != nil {
		return nil, err
	}
	return drug, nil
}

// RefillDrug adds whole packages to a drug's stock and records the refill
// moment for the quarterly-notice bookkeeping.
func (db *DB) RefillDrug(ctx context.Context, id string, packages int64) (*dbtypes.Drug, error) {
	drug, err := db.mutateDrug(ctx, id, func(d *dbtypes.Drug) error {
		amount, err := inventory.ApplyRefill(d, packages)
		if err != nil {
			return err
		}
		d.CurrentAmount = amount
		d.LastRefilledAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Refilled drug",
		slog.String("id", id),
		slog.Int64("packages", packages),
		slog.Float64("currentAmount", drug.CurrentAmount))
	return drug, nil
}

// SubtractWeek deducts one week of consumption from a drug's stock, clamped
// at zero.
func (db *DB) SubtractWeek(ctx context.Context, id string, ref time.Time) (*dbtypes.Drug, error) {
	drug, err := db.mutateDrug(ctx, id, func(d *dbtypes.Drug) error {
		d.CurrentAmount = inventory.ApplyWeeklySubtraction(d, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Applied weekly subtraction",
		slog.String("id", id),
		slog.Float64("currentAmount", drug.CurrentAmount))
	return drug, nil
}

// DeleteDrug removes a drug permanently.
func (db *DB) DeleteDrug(ctx context.Context, id string) error {
	drugRef := db.firestoreClient.Collection(drugsCollection).Doc(id)
	if _, err := drugRef.Get(ctx); status.Code(err) == codes.NotFound {
		return ErrDrugNotFound
	} else if err != nil {
		return fmt.Errorf("while retrieving drug %s: %w", id, err)
	}

	if _, err := drugRef.Delete(ctx); err != nil {
		return fmt.Errorf("while deleting drug %s: %w", id, err)
	}
	return nil
}

// ListVacations returns all doctor vacation periods ordered by start date.
func (db *DB) ListVacations(ctx context.Context) ([]*dbtypes.DoctorVacation, error) {
	var vacations []*dbtypes.DoctorVacation

	vacationIter := db.firestoreClient.Collection(vacationsCollection).OrderBy("startDate", firestore.Asc).Documents(ctx)
	defer vacationIter.Stop()
	for {
		vacationSnapshot, err := vacationIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating vacations: %w", err)
		}

		vacation := &dbtypes.DoctorVacation{}
		if err := vacationSnapshot.DataTo(vacation); err != nil {
			return nil, fmt.Errorf("while unmarshaling vacation %s: %w", vacationSnapshot.Ref.ID, err)
		}
		vacations = append(vacations, vacation)
	}

	return vacations, nil
}

// GetVacation looks up a single vacation period by ID.
func (db *DB) GetVacation(ctx context.Context, id string) (*dbtypes.DoctorVacation, error) {
	docSnap, err := db.firestoreClient.Collection(vacationsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrVacationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving vacation %s: %w", id, err)
	}

	vacation := &dbtypes.DoctorVacation{}
	if err := docSnap.DataTo(vacation); err != nil {
		return nil, fmt.Errorf("while unmarshaling vacation %s: %w", id, err)
	}

	return vacation, nil
}

// CreateVacation stores a new vacation period.
func (db *DB) CreateVacation(ctx context.Context, vacation *dbtypes.DoctorVacation) (*dbtypes.DoctorVacation, error) {
	vacation.StartDate = dbtypes.DateOf(vacation.StartDate)
	vacation.EndDate = dbtypes.DateOf(vacation.EndDate)
	if err := validateVacation(vacation); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	vacation.CreatedAt = now
	vacation.UpdatedAt = now

	newVacationRef := db.firestoreClient.Collection(vacationsCollection).NewDoc()
	vacation.ID = newVacationRef.ID
	if _, err := newVacationRef.Create(ctx, vacation); err != nil {
		return nil, fmt.Errorf("while creating vacation: %w", err)
	}

	return vacation, nil
}

// UpdateVacation applies the present fields of the patch to the stored
// vacation period.
func (db *DB) UpdateVacation(ctx context.Context, id string, patch dbtypes.DoctorVacationPatch) (*dbtypes.DoctorVacation, error) {
	vacationRef := db.firestoreClient.Collection(vacationsCollection).Doc(id)

	var vacation *dbtypes.DoctorVacation
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		docSnap, err := txn.Get(vacationRef)
		if status.Code(err) == codes.NotFound {
			return ErrVacationNotFound
		}
		if err != nil {
			return fmt.Errorf("while reading vacation: %w", err)
		}

		vacation = &dbtypes.DoctorVacation{}
		if err := docSnap.DataTo(vacation); err != nil {
			return fmt.Errorf("while unmarshaling vacation: %w", err)
		}

		patch.Apply(vacation)
		if err := validateVacation(vacation); err != nil {
			return err
		}

		vacation.UpdatedAt = time.Now().UTC()
		if err := txn.Set(vacationRef, vacation); err != nil {
			return fmt.Errorf("while writing vacation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVacationNotFound) || errors.Is(err, ErrEndBeforeStart) {
			return nil, err
		}
		return nil, fmt.Errorf("while updating vacation %s: %w", id, err)
	}

	return vacation, nil
}

// DeleteVacation removes a vacation period permanently.
func (db *DB) DeleteVacation(ctx context.Context, id string) error {
	vacationRef := db.firestoreClient.Collection(vacationsCollection).Doc(id)
	if _, err := vacationRef.Get(ctx); status.Code(err) == codes.NotFound {
		return ErrVacationNotFound
	} else if err != nil {
		return fmt.Errorf("while retrieving vacation %s: %w", id, err)
	}

	if _, err := vacationRef.Delete(ctx); err != nil {
		return fmt.Errorf("while deleting vacation %s: %w", id, err)
	}
	return nil
}

// CurrentVacation returns the vacation period covering the reference day, or
// nil if the doctor is available.
func (db *DB) CurrentVacation(ctx context.Context, ref time.Time) (*dbtypes.DoctorVacation, error) {
	day := dbtypes.DateOf(ref)

	// Firestore permits range filters on a single field only, so the end
	// date is checked client-side.
	vacationIter := db.firestoreClient.Collection(vacationsCollection).
		Where("startDate", "<=", day).
		Documents(ctx)
	defer vacationIter.Stop()
	for {
		vacationSnapshot, err := vacationIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating vacations: %w", err)
		}

		vacation := &dbtypes.DoctorVacation{}
		if err := vacationSnapshot.DataTo(vacation); err != nil {
			return nil, fmt.Errorf("while unmarshaling vacation %s: %w", vacationSnapshot.Ref.ID, err)
		}

		if vacation.IsCurrent(day) {
			return vacation, nil
		}
	}

	return nil, nil
}

// LastNotifiedQuarter reads the quarter marker of the quarterly first-order
// notice.  Empty string means no notice has ever been sent.
func (db *DB) LastNotifiedQuarter(ctx context.Context) (string, error) {
	docSnap, err := db.firestoreClient.Collection(ledgerCollection).Doc(ledgerDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("while reading reminder ledger: %w", err)
	}

	ledger := &dbtypes.ReminderLedger{}
	if err := docSnap.DataTo(ledger); err != nil {
		return "", fmt.Errorf("while unmarshaling reminder ledger: %w", err)
	}

	return ledger.LastNotifiedQuarter, nil
}

// SetLastNotifiedQuarter advances the quarter marker.  Callers must only do
// this after a successful send.
func (db *DB) SetLastNotifiedQuarter(ctx context.Context, quarter string) error {
	ledger := &dbtypes.ReminderLedger{LastNotifiedQuarter: quarter}
	if _, err := db.firestoreClient.Collection(ledgerCollection).Doc(ledgerDoc).Set(ctx, ledger); err != nil {
		return fmt.Errorf("while writing reminder ledger: %w", err)
	}
	return nil
}
