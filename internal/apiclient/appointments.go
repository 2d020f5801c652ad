package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultConflictDuration is used when a conflict check omits the duration.
const DefaultConflictDuration = 60

// ListAppointments returns appointments (with embedded clients) matching q.
func (c *API) ListAppointments(ctx context.Context, q AppointmentQuery) ([]Appointment, error) {
	query := url.Values{}
	setIf(query, "client_id", q.ClientID)
	setIf(query, "status", q.Status)
	setTime(query, "date_from", q.DateFrom)
	setTime(query, "date_to", q.DateTo)
	if q.IsRecurring != nil {
		query.Set("is_recurring", strconv.FormatBool(*q.IsRecurring))
	}
	return fetchList[Appointment](ctx, c, Request{
		Operation: "appointments.list",
		Method:    http.MethodGet,
		Path:      "/api/appointments/",
		Query:     query,
	}, "appointments", "data")
}

func (c *API) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	var out Appointment
	if err := c.Do(ctx, Request{
		Operation: "appointments.get",
		Method:    http.MethodGet,
		Path:      "/api/appointments/" + url.PathEscape(id),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *API) CreateAppointment(ctx context.Context, in Appointment) (*Appointment, error) {
	in.ID = ""
	in.Client = nil
	var out Appointment
	if err := c.Do(ctx, Request{
		Operation: "appointments.create",
		Method:    http.MethodPost,
		Path:      "/api/appointments/",
		Body:      in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *API) UpdateAppointment(ctx context.Context, id string, in Appointment) (*Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	in.ID = ""
	in.Client = nil
	var out Appointment
	if err := c.Do(ctx, Request{
		Operation: "appointments.update",
		Method:    http.MethodPut,
		Path:      "/api/appointments/" + url.PathEscape(id),
		Body:      in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *API) DeleteAppointment(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errIDRequired
	}
	return c.Do(ctx, Request{
		Operation: "appointments.delete",
		Method:    http.MethodDelete,
		Path:      "/api/appointments/" + url.PathEscape(id),
	}, nil)
}

// CheckConflicts asks the backend for appointments overlapping the proposed
// window. The backend answers with a bare array or a {has_conflicts,conflicts}
// object; both normalize to ConflictResult.
func (c *API) CheckConflicts(ctx context.Context, check ConflictCheck) (*ConflictResult, error) {
	if strings.TrimSpace(check.ClientID) == "" {
		return nil, fmt.Errorf("apiclient: conflict check: client id is required")
	}
	if check.DurationMinutes <= 0 {
		check.DurationMinutes = DefaultConflictDuration
	}
	conflicts, err := fetchList[Conflict](ctx, c, Request{
		Operation: "appointments.conflicts",
		Method:    http.MethodPost,
		Path:      "/api/appointments/conflicts",
		Body:      check,
	}, "conflicts")
	if err != nil {
		return nil, err
	}
	return &ConflictResult{HasConflicts: len(conflicts) > 0, Conflicts: conflicts}, nil
}

// CreateRecurring asks the backend to expand a recurring batch.
func (c *API) CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error) {
	req.BaseAppointment.ID = ""
	req.BaseAppointment.Client = nil
	var raw json.RawMessage
	if err := c.Do(ctx, Request{
		Operation: "appointments.recurring",
		Method:    http.MethodPost,
		Path:      "/api/appointments/recurring",
		Body:      req,
	}, &raw); err != nil {
		return nil, err
	}
	result, err := decodeRecurring(raw)
	if err != nil {
		return nil, &Error{
			Kind:      KindDecode,
			Status:    http.StatusOK,
			Message:   "Unexpected response from server",
			Operation: "appointments.recurring",
			Err:       err,
		}
	}
	Localize(result, c.loc)
	return result, nil
}

func decodeRecurring(raw json.RawMessage) (*RecurringResult, error) {
	trimmed := bytes.TrimSpace(raw)
	result := &RecurringResult{}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return result, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &result.Appointments); err != nil {
			return nil, fmt.Errorf("decode recurring: %w", err)
		}
		return result, nil
	}
	var wrapper struct {
		Message      string            `json:"message"`
		Appointments []json.RawMessage `json:"appointments"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode recurring: %w", err)
	}
	result.Message = wrapper.Message
	for _, item := range wrapper.Appointments {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			result.IDs = append(result.IDs, id)
			continue
		}
		var appt Appointment
		if err := json.Unmarshal(item, &appt); err != nil {
			return nil, fmt.Errorf("decode recurring appointment: %w", err)
		}
		result.Appointments = append(result.Appointments, appt)
	}
	return result, nil
}

// AppointmentAnalytics returns outcome counts for the given range.
func (c *API) AppointmentAnalytics(ctx context.Context, r DateRange) (*AppointmentAnalytics, error) {
	query := url.Values{}
	setTime(query, "date_from", r.From)
	setTime(query, "date_to", r.To)
	var out AppointmentAnalytics
	if err := c.Do(ctx, Request{
		Operation: "appointments.analytics",
		Method:    http.MethodGet,
		Path:      "/api/appointments/analytics",
		Query:     query,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AppointmentTrends returns the backend's trend series for the last days.
func (c *API) AppointmentTrends(ctx context.Context, days int) (json.RawMessage, error) {
	return c.rawJSON(ctx, Request{
		Operation: "appointments.trends",
		Method:    http.MethodGet,
		Path:      "/api/appointments/trends",
		Query:     daysQuery(days),
	})
}

// PendingReminders lists scheduled appointments whose reminder is due.
func (c *API) PendingReminders(ctx context.Context) ([]PendingReminder, error) {
	return fetchList[PendingReminder](ctx, c, Request{
		Operation: "appointments.reminders",
		Method:    http.MethodGet,
		Path:      "/api/appointments/reminders/pending",
	}, "pending_reminders", "reminders")
}

// SendReminder marks an appointment's reminder as sent.
func (c *API) SendReminder(ctx context.Context, id string) (*MessageResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	var out MessageResponse
	if err := c.Do(ctx, Request{
		Operation: "appointments.send_reminder",
		Method:    http.MethodPost,
		Path:      "/api/appointments/" + url.PathEscape(id) + "/send-reminder",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *API) rawJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	return raw, nil
}

func daysQuery(days int) url.Values {
	if days <= 0 {
		days = 30
	}
	return url.Values{"days": []string{strconv.Itoa(days)}}
}
