package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/appointments"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// AppointmentsHandler serves the scheduling screen.
type AppointmentsHandler struct {
	store    *appointments.Store
	pageSize int
	loc      *time.Location
	logger   *logging.Logger
}

func NewAppointmentsHandler(store *appointments.Store, pageSize int, loc *time.Location, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if pageSize <= 0 {
		pageSize = views.DefaultPageSize
	}
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentsHandler{store: store, pageSize: pageSize, loc: loc, logger: logger}
}

// AppointmentListResponse is one page of the filtered appointment collection.
type AppointmentListResponse struct {
	views.Page[apiclient.Appointment]
	Search   string          `json:"search"`
	Status   string          `json:"status"`
	Date     string          `json:"date,omitempty"`
	Counts   map[string]int  `json:"counts"`
	InFlight map[string]bool `json:"in_flight"`
}

// List handles GET /api/appointments.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	state, err := views.ParseState(r.URL.Query(), h.pageSize, h.loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.store.Loaded() {
		if err := h.store.Load(r.Context()); err != nil {
			h.logger.Warn("appointment collection unavailable", "error", err)
		}
	}
	resp := AppointmentListResponse{
		Page:     h.store.View(state),
		Search:   state.Search,
		Status:   state.Status,
		Counts:   h.store.Counts(),
		InFlight: h.store.InFlight(),
	}
	if state.Date != nil {
		resp.Date = state.Date.In(h.loc).Format(views.DateLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reload handles POST /api/appointments/reload.
func (h *AppointmentsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Load(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": h.store.Len()})
}

func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Appointment
	if err := decodeJSONIn(r, &in, h.loc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Appointment
	if err := decodeJSONIn(r, &in, h.loc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConflicts handles POST /api/appointments/conflicts.
func (h *AppointmentsHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var check apiclient.ConflictCheck
	if err := decodeJSONIn(r, &check, h.loc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.store.CheckConflicts(r.Context(), check)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateRecurring handles POST /api/appointments/recurring.
func (h *AppointmentsHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RecurringRequest
	if err := decodeJSONIn(r, &req, h.loc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.store.CreateRecurring(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      result.Message,
		"created":      result.Created(),
		"appointments": result.Appointments,
		"ids":          result.IDs,
	})
}

// PendingReminders handles GET /api/appointments/reminders.
func (h *AppointmentsHandler) PendingReminders(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.PendingReminders(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_reminders": items, "count": len(items)})
}

func (h *AppointmentsHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	resp, err := h.store.SendReminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Trends handles GET /api/appointments/trends?days=N.
func (h *AppointmentsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	raw, err := h.store.Trends(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}
