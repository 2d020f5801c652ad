// Package clients owns the dashboard's canonical client collection. Only
// the Store writes it; every other component reads through View or Items.
package clients

import (
	"context"
	"errors"
	"fmt"
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
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpLoad   = "load"
)

var (
	ErrNotFound      = errors.New("clients: not found")
	ErrInvalidStatus = errors.New("clients: invalid status filter")
)

// Backend is the subset of apiclient.API the store needs.
type Backend interface {
	ListClients(ctx context.Context, q apiclient.ClientQuery) ([]apiclient.Client, error)
	GetClient(ctx context.Context, id string) (*apiclient.Client, error)
	CreateClient(ctx context.Context, in apiclient.Client) (*apiclient.Client, error)
	UpdateClient(ctx context.Context, id string, in apiclient.Client) (*apiclient.Client, error)
	DeleteClient(ctx context.Context, id string) error
	ClientAppointments(ctx context.Context, id string) ([]apiclient.Appointment, error)
	ClientAnalytics(ctx context.Context, id string) (*apiclient.SingleClientAnalytics, error)
	ClientsOverview(ctx context.Context) (*apiclient.ClientAnalytics, error)
	ExportClientsCSV(ctx context.Context, status string) (*apiclient.RawResponse, error)
}

// Store holds the client collection for one dashboard session.
type Store struct {
	backend  Backend
	logger   *logging.Logger
	clock    validation.Clock
	inflight *inflight.Tracker
	loads    singleflight.Group
	onDelete []func(id string)

	mu       sync.RWMutex
	items    []apiclient.Client
	loadedAt time.Time
}

// Option configures a Store.
type Option func(*Store)

func WithClock(clock validation.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

func NewStore(backend Backend, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		backend:  backend,
		logger:   logger,
		clock:    time.Now,
		inflight: inflight.New(OpAdd, OpUpdate, OpDelete, OpLoad),
		items:    []apiclient.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnDelete registers fn to run after a client is deleted, so owners of
// dependent data can drop it.
func (s *Store) OnDelete(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Load replaces the collection with the backend's. Concurrent calls share
// one request, which runs detached from any single caller; a caller that
// goes away stops waiting but the load still completes for the others.
// A failed first load leaves the collection empty, a failed reload keeps
// the previous items. The error is returned for the caller to report.
func (s *Store) Load(ctx context.Context) error {
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan("load", func() (any, error) {
		done := s.inflight.Begin(OpLoad)
		defer done()

		items, err := s.backend.ListClients(loadCtx, apiclient.ClientQuery{})
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if s.loadedAt.IsZero() {
				s.items = []apiclient.Client{}
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
		return fmt.Errorf("clients: load: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.logger.Error("failed to load clients", "error", res.Err)
			return fmt.Errorf("clients: load: %w", res.Err)
		}
	}
	s.logger.Debug("clients loaded", "count", s.Len())
	return nil
}

// Loaded reports whether Load has completed at least once.
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

// Items returns a copy of the collection in backend order.
func (s *Store) Items() []apiclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]apiclient.Client(nil), s.items...)
}

// Lookup finds a client in the local collection.
func (s *Store) Lookup(id string) (apiclient.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return apiclient.Client{}, false
}

// View filters and paginates the collection for display.
func (s *Store) View(state views.State) views.Page[apiclient.Client] {
	s.mu.RLock()
	filtered := views.FilterClients(s.items, state.ClientFilter())
	s.mu.RUnlock()
	return views.Paginate(filtered, state.Page, state.PageSize)
}

// Counts returns the number of clients per status plus "total".
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]int{"total": len(s.items)}
	for _, st := range apiclient.ClientStatuses() {
		out[st] = 0
	}
	for _, c := range s.items {
		out[string(c.Status)]++
	}
	return out
}

// InFlight reports the busy flag of each mutating operation.
func (s *Store) InFlight() map[string]bool { return s.inflight.Snapshot() }

// Create validates in, creates it on the backend and appends the stored
// record to the collection.
func (s *Store) Create(ctx context.Context, in apiclient.Client) (*apiclient.Client, error) {
	done := s.inflight.Begin(OpAdd)
	defer done()

	if errs := s.validate(in); errs != nil {
		return nil, errs
	}
	created, err := s.backend.CreateClient(ctx, in)
	if err != nil {
		return nil, err
	}
	fresh := s.refetch(ctx, created)

	s.mu.Lock()
	if i := s.indexOf(fresh.ID); i >= 0 {
		s.items[i] = *fresh
	} else {
		s.items = append(s.items, *fresh)
	}
	s.mu.Unlock()

	s.logger.Info("client created", "client_id", fresh.ID)
	return fresh, nil
}

// Update validates in and replaces the client identified by id.
func (s *Store) Update(ctx context.Context, id string, in apiclient.Client) (*apiclient.Client, error) {
	done := s.inflight.Begin(OpUpdate)
	defer done()

	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	if errs := s.validate(in); errs != nil {
		return nil, errs
	}
	updated, err := s.backend.UpdateClient(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if updated.ID == "" {
		updated.ID = id
	}
	fresh := s.refetch(ctx, updated)

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.items[i] = *fresh
	} else {
		s.items = append(s.items, *fresh)
	}
	s.mu.Unlock()

	s.logger.Info("client updated", "client_id", id)
	return fresh, nil
}

// Delete removes the client on the backend and then locally. The backend
// cascades to the client's appointments; registered hooks mirror that.
func (s *Store) Delete(ctx context.Context, id string) error {
	done := s.inflight.Begin(OpDelete)
	defer done()

	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if err := s.backend.DeleteClient(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	}
	hooks := append([]func(string){}, s.onDelete...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	s.logger.Info("client deleted", "client_id", id)
	return nil
}

// Get fetches a client from the backend.
func (s *Store) Get(ctx context.Context, id string) (*apiclient.Client, error) {
	c, err := s.backend.GetClient(ctx, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) Appointments(ctx context.Context, id string) ([]apiclient.Appointment, error) {
	return s.backend.ClientAppointments(ctx, id)
}

func (s *Store) Analytics(ctx context.Context, id string) (*apiclient.SingleClientAnalytics, error) {
	return s.backend.ClientAnalytics(ctx, id)
}

func (s *Store) Overview(ctx context.Context) (*apiclient.ClientAnalytics, error) {
	return s.backend.ClientsOverview(ctx)
}

// ExportCSV downloads the backend export. Status "all" or "" exports every client.
func (s *Store) ExportCSV(ctx context.Context, status string) (*apiclient.RawResponse, error) {
	status = strings.TrimSpace(status)
	if status == views.StatusAll {
		status = ""
	}
	if status != "" && !apiclient.ClientStatus(status).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.backend.ExportClientsCSV(ctx, status)
}

// refetch reads back the stored record after a mutation. A failed read
// falls back to the mutation response.
func (s *Store) refetch(ctx context.Context, c *apiclient.Client) *apiclient.Client {
	if c == nil || c.ID == "" {
		return c
	}
	fresh, err := s.backend.GetClient(ctx, c.ID)
	if err != nil {
		s.logger.Warn("client re-fetch failed", "client_id", c.ID, "error", err)
		return c
	}
	return fresh
}

func (s *Store) validate(in apiclient.Client) *validation.Errors {
	return validation.ClientSchema(s.clock).Check(Values(in))
}

// Values flattens a client into form values keyed by field name.
func Values(c apiclient.Client) map[string]string {
	return map[string]string{
		validation.FieldName:             c.Name,
		validation.FieldEmail:            c.Email,
		validation.FieldPhone:            c.Phone,
		validation.FieldDateOfBirth:      c.DateOfBirth,
		validation.FieldAddress:          c.Address,
		validation.FieldEmergencyContact: c.EmergencyContact,
		validation.FieldEmergencyPhone:   c.EmergencyPhone,
		validation.FieldNotes:            c.Notes,
		validation.FieldStatus:           string(c.Status),
	}
}

func (s *Store) indexOf(id string) int {
	for i, c := range s.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}
