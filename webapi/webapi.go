// Package webapi exposes the JSON HTTP surface consumed by the single-page
// frontend: drug and doctor-vacation CRUD, the refill and weekly-subtraction
// actions, the reorder query, and the manual reminder triggers.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/januhrhammer/dora/dblayer"
	"github.com/januhrhammer/dora/dbtypes"
	"github.com/januhrhammer/dora/inventory"
	"github.com/januhrhammer/dora/mailer"

	"github.com/golang/glog"
)

// Store is the persistence surface the API needs.  *dblayer.DB satisfies it.
type Store interface {
	ListDrugs(ctx context.Context) ([]*dbtypes.Drug, error)
	GetDrug(ctx context.Context, id string) (*dbtypes.Drug, error)
	CreateDrug(ctx context.Context, drug *dbtypes.Drug) (*dbtypes.Drug, error)
	UpdateDrug(ctx context.Context, id string, patch dbtypes.DrugPatch) (*dbtypes.Drug, error)
	DeleteDrug(ctx context.Context, id string) error
	RefillDrug(ctx context.Context, id string, packages int64) (*dbtypes.Drug, error)
	SubtractWeek(ctx context.Context, id string, ref time.Time) (*dbtypes.Drug, error)

	ListVacations(ctx context.Context) ([]*dbtypes.DoctorVacation, error)
	GetVacation(ctx context.Context, id string) (*dbtypes.DoctorVacation, error)
	CreateVacation(ctx context.Context, vacation *dbtypes.DoctorVacation) (*dbtypes.DoctorVacation, error)
	UpdateVacation(ctx context.Context, id string, patch dbtypes.DoctorVacationPatch) (*dbtypes.DoctorVacation, error)
	DeleteVacation(ctx context.Context, id string) error
	CurrentVacation(ctx context.Context, ref time.Time) (*dbtypes.DoctorVacation, error)
}

// Reminders is the manual-trigger surface of the reminder engine.
// *reminder.Engine satisfies it.
type Reminders interface {
	SendWeeklyReminder(ctx context.Context) error
	SendReorderReminder(ctx context.Context) (int, error)
	SendTestEmail(ctx context.Context) error
}

type API struct {
	store     Store
	reminders Reminders

	// Overridable for tests.
	now func() time.Time
}

func New(store Store, reminders Reminders) *API {
	return &API{
		store:     store,
		reminders: reminders,
		now:       time.Now,
	}
}

func (a *API) Register(m *http.ServeMux) {
	m.HandleFunc("GET /{$}", a.rootHandler)

	m.HandleFunc("GET /drugs", a.listDrugsHandler)
	m.HandleFunc("POST /drugs", a.createDrugHandler)
	m.HandleFunc("GET /drugs/{id}", a.getDrugHandler)
	m.HandleFunc("PUT /drugs/{id}", a.updateDrugHandler)
	m.HandleFunc("DELETE /drugs/{id}", a.deleteDrugHandler)
	m.HandleFunc("POST /drugs/{id}/refill", a.refillDrugHandler)
	m.HandleFunc("POST /drugs/{id}/subtract-week", a.subtractWeekHandler)
	m.HandleFunc("GET /drugs-status/reorder", a.reorderStatusHandler)

	m.HandleFunc("GET /doctor-vacations", a.listVacationsHandler)
	m.HandleFunc("POST /doctor-vacations", a.createVacationHandler)
	m.HandleFunc("GET /doctor-vacations/current", a.currentVacationHandler)
	m.HandleFunc("GET /doctor-vacations/{id}", a.getVacationHandler)
	m.HandleFunc("PUT /doctor-vacations/{id}", a.updateVacationHandler)
	m.HandleFunc("DELETE /doctor-vacations/{id}", a.deleteVacationHandler)

	m.HandleFunc("POST /test-email", a.testEmailHandler)
	m.HandleFunc("POST /send-weekly-reminder", a.weeklyReminderHandler)
	m.HandleFunc("POST /send-reorder-reminder", a.reorderReminderHandler)
}

// drugResponse is a stored drug plus the projector's derived metrics, the
// shape the frontend renders on every page load.
type drugResponse struct {
	*dbtypes.Drug
	DailyConsumption float64              `json:"daily_consumption"`
	DaysRemaining    float64              `json:"days_remaining"`
	WeeksRemaining   float64              `json:"weeks_remaining"`
	NeedsReorder     bool                 `json:"needs_reorder"`
	CurrentWeekType  inventory.WeekParity `json:"current_week_type"`
	CurrentWeekPills float64              `json:"current_week_pills"`
}

func (a *API) drugResponse(d *dbtypes.Drug) *drugResponse {
	now := a.now()
	return &drugResponse{
		Drug:             d,
		DailyConsumption: inventory.DailyConsumption(d, now),
		DaysRemaining:    inventory.DaysRemaining(d, now),
		WeeksRemaining:   inventory.WeeksRemaining(d, now),
		NeedsReorder:     inventory.NeedsReorder(d, now),
		CurrentWeekType:  inventory.CurrentWeekParity(now),
		CurrentWeekPills: inventory.CurrentWeekPills(d, now),
	}
}

type vacationResponse struct {
	ID         string    `json:"id"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Notes      string    `json:"notes"`
	IsCurrent  bool      `json:"is_current"`
	IsUpcoming bool      `json:"is_upcoming"`
	IsPast     bool      `json:"is_past"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a *API) vacationResponse(v *dbtypes.DoctorVacation) *vacationResponse {
	now := a.now()
	return &vacationResponse{
		ID:         v.ID,
		StartDate:  v.StartDate.Format("2006-01-02"),
		EndDate:    v.EndDate.Format("2006-01-02"),
		Notes:      v.Notes,
		IsCurrent:  v.IsCurrent(now),
		IsUpcoming: v.IsUpcoming(now),
		IsPast:     v.IsPast(now),
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// writeError maps store and transport errors onto user-actionable HTTP
// outcomes.  Anything unrecognized is logged and reported as a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dblayer.ErrDrugNotFound),
		errors.Is(err, dblayer.ErrVacationNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: err.Error()})
	case errors.Is(err, dblayer.ErrNameMustNotBeEmpty),
		errors.Is(err, dblayer.ErrPackageSizeNotPositive),
		errors.Is(err, dblayer.ErrUnknownScheduleType),
		errors.Is(err, dblayer.ErrDoseMustNotBeNegative),
		errors.Is(err, dblayer.ErrAmountMustNotBeNegative),
		errors.Is(err, dblayer.ErrEndBeforeStart),
		errors.Is(err, inventory.ErrPackagesNotPositive):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	case errors.Is(err, mailer.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: err.Error()})
	default:
		glog.Errorf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal Error"})
	}
}

func (a *API) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageBody{Message: "Medicine Tracker API is running"})
}

func (a *API) listDrugsHandler(w http.ResponseWriter, r *http.Request) {
	drugs, err := a.store.ListDrugs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := []*drugResponse{}
	for _, d := range drugs {
		resp = append(resp, a.drugResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) createDrugHandler(w http.ResponseWriter, r *http.Request) {
	drug := &dbtypes.Drug{}
	if err := json.NewDecoder(r.Body).Decode(drug); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}
	drug.ID = ""

	created, err := a.store.CreateDrug(r.Context(), drug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.drugResponse(created))
}

func (a *API) getDrugHandler(w http.ResponseWriter, r *http.Request) {
	drug, err := a.store.GetDrug(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.drugResponse(drug))
}

func (a *API) updateDrugHandler(w http.ResponseWriter, r *http.Request) {
	patch := dbtypes.DrugPatch{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}

	drug, err := a.store.UpdateDrug(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.drugResponse(drug))
}

func (a *API) deleteDrugHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteDrug(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refillRequest struct {
	Packages int64 `json:"packages"`
}

func (a *API) refillDrugHandler(w http.ResponseWriter, r *http.Request) {
	req := refillRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}

	drug, err := a.store.RefillDrug(r.Context(), r.PathValue("id"), req.Packages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.drugResponse(drug))
}

func (a *API) subtractWeekHandler(w http.ResponseWriter, r *http.Request) {
	drug, err := a.store.SubtractWeek(r.Context(), r.PathValue("id"), a.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.drugResponse(drug))
}

func (a *API) reorderStatusHandler(w http.ResponseWriter, r *http.Request) {
	drugs, err := a.store.ListDrugs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	now := a.now()
	resp := []*drugResponse{}
	for _, d := range drugs {
		if inventory.NeedsReorder(d, now) {
			resp = append(resp, a.drugResponse(d))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// vacationRequest carries calendar dates as "2006-01-02" strings, matching
// what the frontend's date inputs produce.
type vacationRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Notes     *string `json:"notes"`
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (a *API) listVacationsHandler(w http.ResponseWriter, r *http.Request) {
	vacations, err := a.store.ListVacations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := []*vacationResponse{}
	for _, v := range vacations {
		resp = append(resp, a.vacationResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) createVacationHandler(w http.ResponseWriter, r *http.Request) {
	req := vacationRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}

	start, ok := parseDate(req.StartDate)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "start_date must be a YYYY-MM-DD date"})
		return
	}
	end, ok := parseDate(req.EndDate)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "end_date must be a YYYY-MM-DD date"})
		return
	}

	vacation := &dbtypes.DoctorVacation{StartDate: start, EndDate: end}
	if req.Notes != nil {
		vacation.Notes = *req.Notes
	}

	created, err := a.store.CreateVacation(r.Context(), vacation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.vacationResponse(created))
}

func (a *API) currentVacationHandler(w http.ResponseWriter, r *http.Request) {
	vacation, err := a.store.CurrentVacation(r.Context(), a.now())
	if err != nil {
		writeError(w, err)
		return
	}
	if vacation == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, a.vacationResponse(vacation))
}

func (a *API) getVacationHandler(w http.ResponseWriter, r *http.Request) {
	vacation, err := a.store.GetVacation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.vacationResponse(vacation))
}

func (a *API) updateVacationHandler(w http.ResponseWriter, r *http.Request) {
	req := vacationRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "malformed request body"})
		return
	}

	patch := dbtypes.DoctorVacationPatch{Notes: req.Notes}
	if req.StartDate != "" {
		start, ok := parseDate(req.StartDate)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Detail: "start_date must be a YYYY-MM-DD date"})
			return
		}
		patch.StartDate = &start
	}
	if req.EndDate != "" {
		end, ok := parseDate(req.EndDate)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Detail: "end_date must be a YYYY-MM-DD date"})
			return
		}
		patch.EndDate = &end
	}

	vacation, err := a.store.UpdateVacation(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.vacationResponse(vacation))
}

func (a *API) deleteVacationHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteVacation(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Doctor vacation deleted successfully"})
}

func (a *API) testEmailHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.reminders.SendTestEmail(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Test email sent successfully"})
}

func (a *API) weeklyReminderHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.reminders.SendWeeklyReminder(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Weekly reminder sent successfully"})
}

func (a *API) reorderReminderHandler(w http.ResponseWriter, r *http.Request) {
	n, err := a.reminders.SendReorderReminder(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusOK, messageBody{Message: "No drugs need reordering at this time"})
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Reorder reminder sent"})
}
