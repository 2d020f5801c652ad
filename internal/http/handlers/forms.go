package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/wellness-dashboard/internal/validation"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// Dashboard forms that can be validated field by field.
const (
	FormClient            = "client"
	FormAppointment       = "appointment"
	FormAppointmentUpdate = "appointment-update"
	FormRecurring         = "recurring"
)

// FormsHandler runs the dashboard's form rules so the UI can show
// blur-time messages with the same wording the mutating routes use.
type FormsHandler struct {
	clock  validation.Clock
	logger *logging.Logger
}

// NewFormsHandler reads naive dates in loc.
func NewFormsHandler(loc *time.Location, logger *logging.Logger) *FormsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &FormsHandler{
		clock:  func() time.Time { return time.Now().In(loc) },
		logger: logger,
	}
}

// FormValidationRequest carries the form's current values. Fields listed
// in Touched are validated as if they had just lost focus; Submit
// validates and touches every field.
type FormValidationRequest struct {
	Values  map[string]string `json:"values"`
	Touched []string          `json:"touched"`
	Submit  bool              `json:"submit"`
}

// FormValidationResponse reports messages for touched fields only, the
// state of every field and whether the whole form would be accepted.
type FormValidationResponse struct {
	Valid  bool                             `json:"valid"`
	Errors map[string]string                `json:"errors"`
	Fields map[string]validation.FieldState `json:"fields"`
}

func (h *FormsHandler) schema(form string) (validation.Schema, bool) {
	switch form {
	case FormClient:
		return validation.ClientSchema(h.clock), true
	case FormAppointment:
		return validation.AppointmentSchema(h.clock), true
	case FormAppointmentUpdate:
		return validation.AppointmentUpdateSchema(), true
	case FormRecurring:
		return validation.RecurringSchema(), true
	}
	return nil, false
}

// Validate handles POST /api/forms/{form}/validate.
func (h *FormsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "form")
	schema, ok := h.schema(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown form " + name})
		return
	}
	var req FormValidationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	form := validation.NewForm(schema, req.Values)
	if req.Submit {
		form.Submit()
	} else {
		for _, field := range req.Touched {
			form.Blur(field)
		}
	}

	fields := make(map[string]validation.FieldState, len(schema))
	for _, f := range schema {
		fields[f.Name] = form.State(f.Name)
	}
	writeJSON(w, http.StatusOK, FormValidationResponse{
		Valid:  form.Valid(),
		Errors: form.Errors(),
		Fields: fields,
	})
}
