// Package appointments owns the dashboard's canonical appointment
// collection and the scheduling operations that mutate it.
package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/inflight"
	"github.com/wolfman30/wellness-dashboard/internal/validation"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// In-flight operation names.
const (
	OpSchedule  = "schedule"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpConflicts = "conflicts"
	OpRecurring = "recurring"
	OpReminder  = "reminder"
	OpLoad      = "load"
)

var ErrNotFound = errors.New("appointments: not found")

// Backend is the subset of apiclient.API the store needs.
type Backend interface {
	ListAppointments(ctx context.Context, q apiclient.AppointmentQuery) ([]apiclient.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*apiclient.Appointment, error)
	CreateAppointment(ctx context.Context, in apiclient.Appointment) (*apiclient.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, in apiclient.Appointment) (*apiclient.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	CheckConflicts(ctx context.Context, check apiclient.ConflictCheck) (*apiclient.ConflictResult, error)
	CreateRecurring(ctx context.Context, req apiclient.RecurringRequest) (*apiclient.RecurringResult, error)
	PendingReminders(ctx context.Context) ([]apiclient.PendingReminder, error)
	SendReminder(ctx context.Context, id string) (*apiclient.MessageResponse, error)
	AppointmentAnalytics(ctx context.Context, r apiclient.DateRange) (*apiclient.AppointmentAnalytics, error)
	AppointmentTrends(ctx context.Context, days int) (json.RawMessage, error)
}

// ClientLookup resolves client references the backend did not embed.
type ClientLookup interface {
	Lookup(id string) (apiclient.Client, bool)
}

// Store holds the appointment collection for one dashboard session.
type Store struct {
	backend  Backend
	clients  ClientLookup
	logger   *logging.Logger
	clock    validation.Clock
	loc      *time.Location
	inflight *inflight.Tracker
	loads    singleflight.Group

	mu       sync.RWMutex
	items    []apiclient.Appointment
	loadedAt time.Time
}

type Option func(*Store)

func WithClock(clock validation.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithLocation sets the zone used for calendar-day filtering.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func NewStore(backend Backend, clients ClientLookup, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		backend:  backend,
		clients:  clients,
		logger:   logger,
		clock:    time.Now,
		loc:      time.Local,
		inflight: inflight.New(OpSchedule, OpUpdate, OpDelete, OpConflicts, OpRecurring, OpReminder, OpLoad),
		items:    []apiclient.Appointment{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection with the backend's. Concurrent calls share
// one request, detached from any single caller. A failed first load leaves
// the collection empty; a failed reload keeps the previous items.
func (s *Store) Load(ctx context.Context) error {
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan("load", func() (any, error) {
		done := s.inflight.Begin(OpLoad)
		defer done()

		items, err := s.backend.ListAppointments(loadCtx, apiclient.AppointmentQuery{})
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if s.loadedAt.IsZero() {
				s.items = []apiclient.Appointment{}
				s.loadedAt = time.Now()
			}
			return nil, err
		}
		s.items = items
		s.loadedAt = time.Now()
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("appointments: load: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.logger.Error("failed to load appointments", "error", res.Err)
			return fmt.Errorf("appointments: load: %w", res.Err)
		}
	}
	return nil
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the collection with client references resolved.
func (s *Store) Items() []apiclient.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved()
}

// View filters and paginates the collection for display. Client names are
// resolved before filtering so search sees them.
func (s *Store) View(state views.State) views.Page[apiclient.Appointment] {
	s.mu.RLock()
	items := s.resolved()
	s.mu.RUnlock()
	filtered := views.FilterAppointments(items, state.AppointmentFilter(), s.loc)
	return views.Paginate(filtered, state.Page, state.PageSize)
}

// Counts returns the number of appointments per status plus "total".
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{"total": len(s.items)}
	for _, st := range apiclient.AppointmentStatuses() {
		out[st] = 0
	}
	for _, a := range s.items {
		out[string(a.Status)]++
	}
	return out
}

func (s *Store) InFlight() map[string]bool { return s.inflight.Snapshot() }

// ForgetClient drops every appointment of a deleted client.
func (s *Store) ForgetClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]apiclient.Appointment, 0, len(s.items))
	for _, a := range s.items {
		if a.ClientID != clientID {
			kept = append(kept, a)
		}
	}
	s.items = kept
}

// Create validates in and schedules it on the backend.
func (s *Store) Create(ctx context.Context, in apiclient.Appointment) (*apiclient.Appointment, error) {
	done := s.inflight.Begin(OpSchedule)
	defer done()

	if errs := validation.AppointmentSchema(s.clock).Check(Values(in)); errs != nil {
		return nil, errs
	}
	created, err := s.backend.CreateAppointment(ctx, in)
	if err != nil {
		return nil, err
	}
	fresh := s.refetch(ctx, created)
	s.upsert(*fresh)
	s.logger.Info("appointment scheduled", "appointment_id", fresh.ID, "client_id", fresh.ClientID)
	return fresh, nil
}

// Update validates in and replaces the appointment identified by id.
// Past times are accepted so outcomes can be recorded.
func (s *Store) Update(ctx context.Context, id string, in apiclient.Appointment) (*apiclient.Appointment, error) {
	done := s.inflight.Begin(OpUpdate)
	defer done()

	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	if errs := validation.AppointmentUpdateSchema().Check(Values(in)); errs != nil {
		return nil, errs
	}
	updated, err := s.backend.UpdateAppointment(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if updated.ID == "" {
		updated.ID = id
	}
	fresh := s.refetch(ctx, updated)
	s.upsert(*fresh)
	s.logger.Info("appointment updated", "appointment_id", id)
	return fresh, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	done := s.inflight.Begin(OpDelete)
	defer done()

	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if err := s.backend.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	}
	s.mu.Unlock()
	s.logger.Info("appointment deleted", "appointment_id", id)
	return nil
}

// Get fetches one appointment from the backend and resolves its client.
func (s *Store) Get(ctx context.Context, id string) (*apiclient.Appointment, error) {
	a, err := s.backend.GetAppointment(ctx, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	resolved := s.resolve(*a)
	return &resolved, nil
}

// CheckConflicts asks the backend whether the proposed window overlaps an
// existing appointment. Duration defaults to 60 minutes.
func (s *Store) CheckConflicts(ctx context.Context, check apiclient.ConflictCheck) (*apiclient.ConflictResult, error) {
	done := s.inflight.Begin(OpConflicts)
	defer done()

	errs := map[string]string{}
	if strings.TrimSpace(check.ClientID) == "" {
		errs[validation.FieldClientID] = validation.Required("").Message
	}
	if check.AppointmentTime.IsZero() {
		errs["appointment_time"] = validation.Required("").Message
	}
	if check.DurationMinutes < 0 {
		errs["appointment_duration"] = validation.PositiveNumber("-1").Message
	}
	if len(errs) > 0 {
		return nil, &validation.Errors{Fields: errs}
	}
	if check.DurationMinutes == 0 {
		check.DurationMinutes = apiclient.DefaultConflictDuration
	}
	return s.backend.CheckConflicts(ctx, check)
}

// CreateRecurring validates the base appointment and the pattern, lets the
// backend expand the batch, then reloads so every created appointment is
// present. If the reload fails the previous collection is kept.
func (s *Store) CreateRecurring(ctx context.Context, req apiclient.RecurringRequest) (*apiclient.RecurringResult, error) {
	done := s.inflight.Begin(OpRecurring)
	defer done()

	if errs := validateRecurring(req, s.clock); errs != nil {
		return nil, errs
	}
	result, err := s.backend.CreateRecurring(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("appointment reload after recurring create failed", "error", err)
		for _, a := range result.Appointments {
			s.upsert(a)
		}
	}
	s.logger.Info("recurring appointments created", "client_id", req.BaseAppointment.ClientID, "count", result.Created())
	return result, nil
}

func (s *Store) PendingReminders(ctx context.Context) ([]apiclient.PendingReminder, error) {
	return s.backend.PendingReminders(ctx)
}

// SendReminder triggers the reminder and re-fetches the appointment so its
// reminder_sent flag is current.
func (s *Store) SendReminder(ctx context.Context, id string) (*apiclient.MessageResponse, error) {
	done := s.inflight.Begin(OpReminder)
	defer done()

	resp, err := s.backend.SendReminder(ctx, id)
	if err != nil {
		return nil, err
	}
	if fresh, err := s.backend.GetAppointment(ctx, id); err == nil {
		s.upsert(*fresh)
	} else {
		s.logger.Warn("appointment re-fetch failed", "appointment_id", id, "error", err)
	}
	return resp, nil
}

func (s *Store) Analytics(ctx context.Context, r apiclient.DateRange) (*apiclient.AppointmentAnalytics, error) {
	return s.backend.AppointmentAnalytics(ctx, r)
}

func (s *Store) Trends(ctx context.Context, days int) (json.RawMessage, error) {
	return s.backend.AppointmentTrends(ctx, days)
}

// refresh reloads the collection but keeps the current one on failure.
func (s *Store) refresh(ctx context.Context) error {
	items, err := s.backend.ListAppointments(ctx, apiclient.AppointmentQuery{})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = items
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Store) refetch(ctx context.Context, a *apiclient.Appointment) *apiclient.Appointment {
	if a == nil || a.ID == "" {
		return a
	}
	fresh, err := s.backend.GetAppointment(ctx, a.ID)
	if err != nil {
		s.logger.Warn("appointment re-fetch failed", "appointment_id", a.ID, "error", err)
		return a
	}
	return fresh
}

func (s *Store) upsert(a apiclient.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(a.ID); i >= 0 {
		s.items[i] = a
		return
	}
	s.items = append(s.items, a)
}

// resolved copies the collection, filling missing client references from
// the lookup. Callers hold s.mu.
func (s *Store) resolved() []apiclient.Appointment {
	out := make([]apiclient.Appointment, len(s.items))
	for i, a := range s.items {
		out[i] = s.resolve(a)
	}
	return out
}

func (s *Store) resolve(a apiclient.Appointment) apiclient.Appointment {
	if a.Client != nil || s.clients == nil {
		return a
	}
	if c, ok := s.clients.Lookup(a.ClientID); ok {
		a.Client = &c
	}
	return a
}

func (s *Store) indexOf(id string) int {
	for i, a := range s.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Values flattens an appointment into form values keyed by field name.
func Values(a apiclient.Appointment) map[string]string {
	var when string
	if !a.Time.IsZero() {
		when = a.Time.Format(time.RFC3339)
	}
	return map[string]string{
		validation.FieldClientID: a.ClientID,
		validation.FieldTime:     when,
		validation.FieldStatus:   string(a.Status),
		validation.FieldNotes:    a.Notes,
	}
}

func validateRecurring(req apiclient.RecurringRequest, clock validation.Clock) *validation.Errors {
	fields := map[string]string{}
	if errs := validation.AppointmentSchema(clock).Check(Values(req.BaseAppointment)); errs != nil {
		for k, v := range errs.Fields {
			fields[k] = v
		}
	}
	pattern := map[string]string{
		validation.FieldFrequency: req.Pattern.Frequency,
		validation.FieldCount:     strconv.Itoa(req.Pattern.Count),
	}
	if errs := validation.RecurringSchema().Check(pattern); errs != nil {
		for k, v := range errs.Fields {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &validation.Errors{Fields: fields}
}
