// Package apiclienttest provides an in-memory practice backend served over
// httptest for exercising code that talks to it through apiclient.
package apiclienttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

type failure struct {
	status int
	body   string
}

// Backend is a fake practice backend. Routes are keyed as "METHOD /path"
// using the concrete request path.
type Backend struct {
	mu           sync.Mutex
	clients      []apiclient.Client
	appointments []apiclient.Appointment
	failures     map[string]failure
	delays       map[string]time.Duration
	hits         map[string]int
	nextID       int
	now          func() time.Time

	server *httptest.Server
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		failures: make(map[string]failure),
		delays:   make(map[string]time.Duration),
		hits:     make(map[string]int),
		now:      time.Now,
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

func (b *Backend) URL() string { return b.server.URL }

// NewClient returns an apiclient bound to the fake with a short backoff.
// Offset-less timestamps are read as UTC.
func (b *Backend) NewClient(t testing.TB) *apiclient.API {
	t.Helper()
	return b.NewClientIn(t, time.UTC)
}

// NewClientIn is NewClient with offset-less timestamps read in loc.
func (b *Backend) NewClientIn(t testing.TB, loc *time.Location) *apiclient.API {
	t.Helper()
	client, err := apiclient.New(apiclient.Config{
		BaseURL:  b.server.URL,
		Timeout:  2 * time.Second,
		Backoff:  time.Millisecond,
		Logger:   logging.Discard(),
		Location: loc,
	})
	require.NoError(t, err)
	return client
}

// Fail makes every request to route answer with status and body until
// Recover is called.
func (b *Backend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, body: body}
}

func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Delay holds requests to route for d before answering.
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// Hits returns how many requests reached route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *Backend) SeedClients(clients ...apiclient.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range clients {
		if c.ID == "" {
			c.ID = b.newID("c")
		}
		if c.Status == "" {
			c.Status = apiclient.ClientActive
		}
		b.clients = append(b.clients, c)
	}
}

func (b *Backend) SeedAppointments(appts ...apiclient.Appointment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range appts {
		if a.ID == "" {
			a.ID = b.newID("a")
		}
		if a.Status == "" {
			a.Status = apiclient.AppointmentScheduled
		}
		a.Client = nil
		b.appointments = append(b.appointments, a)
	}
}

// Clients returns a copy of the backend's client table.
func (b *Backend) Clients() []apiclient.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]apiclient.Client(nil), b.clients...)
}

func (b *Backend) Appointments() []apiclient.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]apiclient.Appointment(nil), b.appointments...)
}

// newID skips identifiers already taken by seeded records.
func (b *Backend) newID(prefix string) string {
	for {
		b.nextID++
		id := fmt.Sprintf("%s-%d", prefix, b.nextID)
		if b.clientIndex(id) < 0 && b.appointmentIndex(id) < 0 {
			return id
		}
	}
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.intercept)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/health/detailed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": map[string]string{"status": "connected"},
		})
	})

	r.Route("/api/clients", func(r chi.Router) {
		r.Get("/", b.listClients)
		r.Post("/", b.createClient)
		r.Get("/analytics", b.clientsOverview)
		r.Get("/export/csv", b.exportClients)
		r.Get("/{id}", b.getClient)
		r.Put("/{id}", b.updateClient)
		r.Delete("/{id}", b.deleteClient)
		r.Get("/{id}/appointments", b.clientAppointments)
		r.Get("/{id}/analytics", b.clientAnalytics)
	})

	r.Route("/api/appointments", func(r chi.Router) {
		r.Get("/", b.listAppointments)
		r.Post("/", b.createAppointment)
		r.Post("/conflicts", b.conflicts)
		r.Post("/recurring", b.recurring)
		r.Get("/reminders/pending", b.pendingReminders)
		r.Get("/analytics", b.appointmentAnalytics)
		r.Get("/trends", b.trends)
		r.Get("/{id}", b.getAppointment)
		r.Put("/{id}", b.updateAppointment)
		r.Delete("/{id}", b.deleteAppointment)
		r.Post("/{id}/send-reminder", b.sendReminder)
	})

	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/dashboard", b.dashboard)
		r.Get("/trends", b.trends)
		r.Get("/reports/client-activity", b.report)
		r.Get("/reports/appointment-performance", b.report)
	})
	return r
}

func (b *Backend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		b.mu.Lock()
		b.hits[route]++
		fail, failing := b.failures[route]
		delay := b.delays[route]
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) listClients(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	status := r.URL.Query().Get("status")
	b.mu.Lock()
	out := make([]apiclient.Client, 0, len(b.clients))
	for _, c := range b.clients {
		if status != "" && string(c.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name+" "+c.Email), search) {
			continue
		}
		out = append(out, c)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createClient(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Client
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	for _, c := range b.clients {
		if strings.EqualFold(c.Email, in.Email) {
			b.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Client with this email already exists"})
			return
		}
	}
	in.ID = b.newID("c")
	if in.Status == "" {
		in.Status = apiclient.ClientActive
	}
	now := b.now().UTC()
	in.CreatedAt, in.UpdatedAt = &now, &now
	b.clients = append(b.clients, in)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (b *Backend) getClient(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	idx := b.clientIndex(chi.URLParam(r, "id"))
	var c apiclient.Client
	if idx >= 0 {
		c = b.clients[idx]
	}
	b.mu.Unlock()
	if idx < 0 {
		notFound(w, "Client not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *Backend) updateClient(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Client
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	idx := b.clientIndex(chi.URLParam(r, "id"))
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Client not found")
		return
	}
	in.ID = b.clients[idx].ID
	in.CreatedAt = b.clients[idx].CreatedAt
	now := b.now().UTC()
	in.UpdatedAt = &now
	b.clients[idx] = in
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, in)
}

func (b *Backend) deleteClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	idx := b.clientIndex(id)
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Client not found")
		return
	}
	b.clients = append(b.clients[:idx], b.clients[idx+1:]...)
	kept := b.appointments[:0]
	for _, a := range b.appointments {
		if a.ClientID != id {
			kept = append(kept, a)
		}
	}
	b.appointments = kept
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Client deleted successfully"})
}

func (b *Backend) clientAppointments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	out := make([]apiclient.Appointment, 0)
	for _, a := range b.appointments {
		if a.ClientID == id {
			out = append(out, b.withClient(a))
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) clientAnalytics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	idx := b.clientIndex(id)
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Client not found")
		return
	}
	out := apiclient.SingleClientAnalytics{ClientID: id, ClientName: b.clients[idx].Name}
	for _, a := range b.appointments {
		if a.ClientID != id {
			continue
		}
		out.TotalAppointments++
		switch a.Status {
		case apiclient.AppointmentCompleted:
			out.CompletedAppointments++
		case apiclient.AppointmentCancelled:
			out.CancelledAppointments++
		case apiclient.AppointmentNoShow:
			out.NoShowAppointments++
		case apiclient.AppointmentScheduled:
			out.UpcomingAppointments++
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) clientsOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.clientStats())
}

func (b *Backend) clientStats() apiclient.ClientAnalytics {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := apiclient.ClientAnalytics{TotalClients: len(b.clients)}
	for _, c := range b.clients {
		switch c.Status {
		case apiclient.ClientActive:
			out.ActiveClients++
		case apiclient.ClientInactive:
			out.InactiveClients++
		}
	}
	return out
}

func (b *Backend) exportClients(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	b.mu.Lock()
	var sb strings.Builder
	sb.WriteString("id,name,email,status\n")
	for _, c := range b.clients {
		if status != "" && string(c.Status) != status {
			continue
		}
		fmt.Fprintf(&sb, "%s,%s,%s,%s\n", c.ID, c.Name, c.Email, c.Status)
	}
	b.mu.Unlock()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="clients_export.csv"`)
	_, _ = io.WriteString(w, sb.String())
}

func (b *Backend) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b.mu.Lock()
	out := make([]apiclient.Appointment, 0, len(b.appointments))
	for _, a := range b.appointments {
		if v := q.Get("client_id"); v != "" && a.ClientID != v {
			continue
		}
		if v := q.Get("status"); v != "" && string(a.Status) != v {
			continue
		}
		out = append(out, b.withClient(a))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Appointment
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	if b.clientIndex(in.ClientID) < 0 {
		b.mu.Unlock()
		notFound(w, "Client not found")
		return
	}
	in.ID = b.newID("a")
	if in.Status == "" {
		in.Status = apiclient.AppointmentScheduled
	}
	in.Client = nil
	b.appointments = append(b.appointments, in)
	out := b.withClient(in)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (b *Backend) getAppointment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	idx := b.appointmentIndex(chi.URLParam(r, "id"))
	var a apiclient.Appointment
	if idx >= 0 {
		a = b.withClient(b.appointments[idx])
	}
	b.mu.Unlock()
	if idx < 0 {
		notFound(w, "Appointment not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (b *Backend) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Appointment
	if !decode(w, r, &in) {
		return
	}
	b.mu.Lock()
	idx := b.appointmentIndex(chi.URLParam(r, "id"))
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Appointment not found")
		return
	}
	in.ID = b.appointments[idx].ID
	in.Client = nil
	b.appointments[idx] = in
	out := b.withClient(in)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	idx := b.appointmentIndex(chi.URLParam(r, "id"))
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Appointment not found")
		return
	}
	b.appointments = append(b.appointments[:idx], b.appointments[idx+1:]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Appointment deleted successfully"})
}

func (b *Backend) conflicts(w http.ResponseWriter, r *http.Request) {
	var check apiclient.ConflictCheck
	if !decode(w, r, &check) {
		return
	}
	window := time.Duration(check.DurationMinutes) * time.Minute
	start, end := check.AppointmentTime, check.AppointmentTime.Add(window)
	b.mu.Lock()
	out := make([]map[string]any, 0)
	for _, a := range b.appointments {
		if a.ClientID != check.ClientID || a.ID == check.ExcludeAppointmentID || a.Status != apiclient.AppointmentScheduled {
			continue
		}
		if a.Time.Before(end) && a.Time.Add(window).After(start) {
			out = append(out, map[string]any{"id": a.ID, "time": a.Time, "status": a.Status})
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"has_conflicts": len(out) > 0, "conflicts": out})
}

func (b *Backend) recurring(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RecurringRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	ids := make([]string, 0, req.Pattern.Count)
	at := req.BaseAppointment.Time
	for i := 0; i < req.Pattern.Count; i++ {
		a := req.BaseAppointment
		a.ID = b.newID("a")
		a.Time = at
		a.IsRecurring = true
		if a.Status == "" {
			a.Status = apiclient.AppointmentScheduled
		}
		b.appointments = append(b.appointments, a)
		ids = append(ids, a.ID)
		switch req.Pattern.Frequency {
		case apiclient.FrequencyDaily:
			at = at.AddDate(0, 0, 1)
		case apiclient.FrequencyMonthly:
			at = at.AddDate(0, 1, 0)
		default:
			at = at.AddDate(0, 0, 7)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      fmt.Sprintf("Created %d recurring appointments", len(ids)),
		"appointments": ids,
	})
}

func (b *Backend) pendingReminders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]map[string]any, 0)
	for _, a := range b.appointments {
		if a.Status == apiclient.AppointmentScheduled && !a.ReminderSent {
			out = append(out, map[string]any{"id": a.ID, "client_id": a.ClientID, "appointment_time": a.Time})
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"pending_reminders": out})
}

func (b *Backend) sendReminder(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	idx := b.appointmentIndex(chi.URLParam(r, "id"))
	if idx < 0 {
		b.mu.Unlock()
		notFound(w, "Appointment not found")
		return
	}
	b.appointments[idx].ReminderSent = true
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reminder sent successfully"})
}

func (b *Backend) appointmentAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.appointmentStats())
}

func (b *Backend) appointmentStats() apiclient.AppointmentAnalytics {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := apiclient.AppointmentAnalytics{TotalAppointments: len(b.appointments)}
	for _, a := range b.appointments {
		switch a.Status {
		case apiclient.AppointmentScheduled:
			out.ScheduledAppointments++
		case apiclient.AppointmentCompleted:
			out.CompletedAppointments++
		case apiclient.AppointmentCancelled:
			out.CancelledAppointments++
		case apiclient.AppointmentNoShow:
			out.NoShowAppointments++
		}
	}
	return out
}

func (b *Backend) dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiclient.DashboardAnalytics{
		Clients:      b.clientStats(),
		Appointments: b.appointmentStats(),
	})
}

func (b *Backend) trends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"days": r.URL.Query().Get("days"), "series": []int{}})
}

func (b *Backend) report(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"report": r.URL.Path, "filters": r.URL.Query()})
}

func (b *Backend) withClient(a apiclient.Appointment) apiclient.Appointment {
	if idx := b.clientIndex(a.ClientID); idx >= 0 {
		c := b.clients[idx]
		a.Client = &c
	}
	return a
}

func (b *Backend) clientIndex(id string) int {
	for i, c := range b.clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) appointmentIndex(id string) int {
	for i, a := range b.appointments {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body"}, "msg": err.Error()}},
		})
		return false
	}
	return true
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
