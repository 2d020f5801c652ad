package apiclient

import (
	"encoding/json"
	"time"
)

// ClientStatus is the fixed lifecycle enumeration for a practice client.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
	ClientPending  ClientStatus = "pending"
)

// Valid reports whether s is one of the known statuses.
func (s ClientStatus) Valid() bool {
	switch s {
	case ClientActive, ClientInactive, ClientPending:
		return true
	}
	return false
}

// ClientStatuses lists every valid client status in display order.
func ClientStatuses() []string {
	return []string{string(ClientActive), string(ClientInactive), string(ClientPending)}
}

// Client is a person receiving services at the practice.
type Client struct {
	ID               string       `json:"id,omitempty"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	Phone            string       `json:"phone,omitempty"`
	Status           ClientStatus `json:"status,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	DateOfBirth      string       `json:"date_of_birth,omitempty"`
	Address          string       `json:"address,omitempty"`
	EmergencyContact string       `json:"emergency_contact,omitempty"`
	EmergencyPhone   string       `json:"emergency_phone,omitempty"`
	CreatedAt        *time.Time   `json:"created_at,omitempty"`
	UpdatedAt        *time.Time   `json:"updated_at,omitempty"`
}

func (c *Client) UnmarshalJSON(data []byte) error {
	type alias Client
	aux := struct {
		*alias
		Phone     *string   `json:"phone"`
		Notes     *string   `json:"notes"`
		CreatedAt *flexTime `json:"created_at"`
		UpdatedAt *flexTime `json:"updated_at"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Phone != nil {
		c.Phone = *aux.Phone
	}
	if aux.Notes != nil {
		c.Notes = *aux.Notes
	}
	c.CreatedAt = aux.CreatedAt.ptr()
	c.UpdatedAt = aux.UpdatedAt.ptr()
	return nil
}

// AppointmentStatus is the fixed lifecycle enumeration for an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// AppointmentStatuses lists every valid appointment status in display order.
func AppointmentStatuses() []string {
	return []string{
		string(AppointmentScheduled),
		string(AppointmentCompleted),
		string(AppointmentCancelled),
		string(AppointmentNoShow),
	}
}

// UnknownClientName is displayed when an appointment's client cannot be resolved.
const UnknownClientName = "Unknown Client"

// Appointment is a scheduled session between the practice and one client.
// Time is a single instant; duration only exists on conflict checks.
type Appointment struct {
	ID               string            `json:"id,omitempty"`
	ClientID         string            `json:"client_id"`
	Client           *Client           `json:"client,omitempty"`
	Time             time.Time         `json:"time"`
	Status           AppointmentStatus `json:"status,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	IsRecurring      bool              `json:"is_recurring,omitempty"`
	RecurringPattern json.RawMessage   `json:"recurring_pattern,omitempty"`
	ReminderTime     *time.Time        `json:"reminder_time,omitempty"`
	ReminderSent     bool              `json:"reminder_sent,omitempty"`
	CreatedAt        *time.Time        `json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	type alias Appointment
	aux := struct {
		*alias
		Notes            *string         `json:"notes"`
		Time             *flexTime       `json:"time"`
		RecurringPattern json.RawMessage `json:"recurring_pattern"`
		ReminderTime     *flexTime       `json:"reminder_time"`
		ReminderSent     *bool           `json:"reminder_sent"`
		IsRecurring      *bool           `json:"is_recurring"`
		CreatedAt        *flexTime       `json:"created_at"`
		UpdatedAt        *flexTime       `json:"updated_at"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Notes != nil {
		a.Notes = *aux.Notes
	}
	if aux.Time != nil {
		a.Time = aux.Time.Time
	}
	a.RecurringPattern = nonNull(aux.RecurringPattern)
	a.ReminderTime = aux.ReminderTime.ptr()
	a.ReminderSent = aux.ReminderSent != nil && *aux.ReminderSent
	a.IsRecurring = aux.IsRecurring != nil && *aux.IsRecurring
	a.CreatedAt = aux.CreatedAt.ptr()
	a.UpdatedAt = aux.UpdatedAt.ptr()
	return nil
}

// ClientName resolves the display name, falling back to UnknownClientName.
func (a Appointment) ClientName() string {
	if a.Client != nil && a.Client.Name != "" {
		return a.Client.Name
	}
	return UnknownClientName
}

// ClientQuery mirrors the backend's list filters.
type ClientQuery struct {
	Search        string
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// AppointmentQuery mirrors the backend's appointment list filters.
type AppointmentQuery struct {
	ClientID    string
	Status      string
	DateFrom    *time.Time
	DateTo      *time.Time
	IsRecurring *bool
}

// DateRange bounds analytics queries. Zero values are omitted.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// ReportQuery filters the client-activity report.
type ReportQuery struct {
	ClientID string
	DateRange
}

// ConflictCheck asks whether a proposed window overlaps existing appointments.
type ConflictCheck struct {
	ClientID             string    `json:"client_id"`
	AppointmentTime      time.Time `json:"appointment_time"`
	DurationMinutes      int       `json:"appointment_duration"`
	ExcludeAppointmentID string    `json:"exclude_appointment_id,omitempty"`
}

func (c *ConflictCheck) UnmarshalJSON(data []byte) error {
	type alias ConflictCheck
	aux := struct {
		*alias
		AppointmentTime *flexTime `json:"appointment_time"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.AppointmentTime != nil {
		c.AppointmentTime = aux.AppointmentTime.Time
	}
	return nil
}

// Conflict is one existing appointment overlapping the proposed window.
type Conflict struct {
	ID         string            `json:"id"`
	Time       time.Time         `json:"time"`
	Status     AppointmentStatus `json:"status"`
	ClientName string            `json:"client_name,omitempty"`
}

func (c *Conflict) UnmarshalJSON(data []byte) error {
	type alias Conflict
	aux := struct {
		*alias
		Time *flexTime `json:"time"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Time != nil {
		c.Time = aux.Time.Time
	}
	return nil
}

// ConflictResult is the normalized conflict-check response.
type ConflictResult struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// RecurringPattern is the recurrence rule the server expands.
type RecurringPattern struct {
	Frequency string     `json:"frequency"`
	Count     int        `json:"count"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func (p *RecurringPattern) UnmarshalJSON(data []byte) error {
	type alias RecurringPattern
	aux := struct {
		*alias
		EndDate *flexTime `json:"end_date"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.EndDate = aux.EndDate.ptr()
	return nil
}

// Recurrence frequencies accepted by the backend.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// RecurringRequest creates a recurring batch from one base appointment.
type RecurringRequest struct {
	BaseAppointment Appointment      `json:"base_appointment"`
	Pattern         RecurringPattern `json:"recurring_pattern"`
}

// RecurringResult is the normalized recurring-create response. Depending on
// backend version it carries full appointments or only their IDs.
type RecurringResult struct {
	Message      string        `json:"message,omitempty"`
	Appointments []Appointment `json:"appointments,omitempty"`
	IDs          []string      `json:"ids,omitempty"`
}

// Created returns how many appointments the batch produced.
func (r RecurringResult) Created() int {
	if len(r.Appointments) > 0 {
		return len(r.Appointments)
	}
	return len(r.IDs)
}

// PendingReminder is an appointment whose reminder is due.
type PendingReminder struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id"`
	AppointmentTime time.Time  `json:"appointment_time"`
	ReminderTime    *time.Time `json:"reminder_time,omitempty"`
}

func (p *PendingReminder) UnmarshalJSON(data []byte) error {
	type alias PendingReminder
	aux := struct {
		*alias
		AppointmentTime *flexTime `json:"appointment_time"`
		ReminderTime    *flexTime `json:"reminder_time"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.AppointmentTime != nil {
		p.AppointmentTime = aux.AppointmentTime.Time
	}
	p.ReminderTime = aux.ReminderTime.ptr()
	return nil
}

// MessageResponse is the backend's generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ClientAnalytics aggregates client counts across the practice.
type ClientAnalytics struct {
	TotalClients        int     `json:"total_clients"`
	ActiveClients       int     `json:"active_clients"`
	InactiveClients     int     `json:"inactive_clients"`
	NewClientsThisMonth int     `json:"new_clients_this_month"`
	ClientGrowthRate    float64 `json:"client_growth_rate"`
}

// AppointmentAnalytics aggregates appointment outcomes.
type AppointmentAnalytics struct {
	TotalAppointments     int     `json:"total_appointments"`
	ScheduledAppointments int     `json:"scheduled_appointments"`
	CompletedAppointments int     `json:"completed_appointments"`
	CancelledAppointments int     `json:"cancelled_appointments"`
	NoShowAppointments    int     `json:"no_show_appointments"`
	UpcomingAppointments  int     `json:"upcoming_appointments"`
	CompletionRate        float64 `json:"completion_rate"`
	CancellationRate      float64 `json:"cancellation_rate"`
}

// DashboardAnalytics is the combined analytics payload.
type DashboardAnalytics struct {
	Clients            ClientAnalytics      `json:"clients"`
	Appointments       AppointmentAnalytics `json:"appointments"`
	PerformanceMetrics map[string]any       `json:"performance_metrics,omitempty"`
}

// SingleClientAnalytics is the per-client statistics payload.
type SingleClientAnalytics struct {
	ClientID              string  `json:"client_id"`
	ClientName            string  `json:"client_name"`
	TotalAppointments     int     `json:"total_appointments"`
	CompletedAppointments int     `json:"completed_appointments"`
	CancelledAppointments int     `json:"cancelled_appointments"`
	NoShowAppointments    int     `json:"no_show_appointments"`
	UpcomingAppointments  int     `json:"upcoming_appointments"`
	CompletionRate        float64 `json:"completion_rate"`
	CancellationRate      float64 `json:"cancellation_rate"`
}
