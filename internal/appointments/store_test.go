package appointments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/apiclient/apiclienttest"
	"github.com/wolfman30/wellness-dashboard/internal/clients"
	"github.com/wolfman30/wellness-dashboard/internal/validation"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

var _ Backend = (*apiclient.API)(nil)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fixture struct {
	backend *apiclienttest.Backend
	clients *clients.Store
	store   *Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := apiclienttest.New(t)
	api := backend.NewClient(t)
	backend.SeedClients(
		apiclient.Client{ID: "c-1", Name: "Jane Doe", Email: "jane@example.com"},
		apiclient.Client{ID: "c-2", Name: "John Smith", Email: "john@example.com"},
	)
	backend.SeedAppointments(
		apiclient.Appointment{ID: "a-1", ClientID: "c-1", Time: now.Add(24 * time.Hour), Notes: "Deep tissue massage"},
		apiclient.Appointment{ID: "a-2", ClientID: "c-2", Time: now.Add(48 * time.Hour), Status: apiclient.AppointmentCompleted},
		apiclient.Appointment{ID: "a-3", ClientID: "c-1", Time: now.Add(49 * time.Hour)},
	)
	cs := clients.NewStore(api, logging.Discard(), clients.WithClock(clock))
	store := NewStore(api, cs, logging.Discard(), WithClock(clock), WithLocation(time.UTC))
	return fixture{backend: backend, clients: cs, store: store}
}

func TestStore_LoadAndView(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))
	assert.Equal(t, 3, f.store.Len())

	state := views.NewState(5)
	state.SetSearch("jane")
	page := f.store.View(state)
	assert.Equal(t, 2, page.Total)

	state.SetDate(now.Add(48 * time.Hour))
	page = f.store.View(state)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a-3", page.Items[0].ID)

	counts := f.store.Counts()
	assert.Equal(t, 2, counts["scheduled"])
	assert.Equal(t, 1, counts["completed"])
}

func TestStore_ResolvesClientNamesFromLookup(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.clients.Load(context.Background()))
	f.store.upsert(apiclient.Appointment{ID: "local", ClientID: "c-2"})
	f.store.upsert(apiclient.Appointment{ID: "orphan", ClientID: "gone"})

	items := f.store.Items()
	byID := map[string]apiclient.Appointment{}
	for _, a := range items {
		byID[a.ID] = a
	}
	assert.Equal(t, "John Smith", byID["local"].ClientName())
	assert.Equal(t, apiclient.UnknownClientName, byID["orphan"].ClientName())
}

func TestStore_LoadFailureDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("GET /api/appointments/", http.StatusBadGateway, "")

	err := f.store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, f.store.Loaded())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 3, f.backend.Hits("GET /api/appointments/"))
}

func TestStore_ReloadFailureKeepsItems(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))
	f.backend.Fail("GET /api/appointments/", http.StatusBadGateway, "")

	require.Error(t, f.store.Load(context.Background()))
	assert.Equal(t, 3, f.store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.backend.Recover("GET /api/appointments/")
	f.backend.Delay("GET /api/appointments/", 50*time.Millisecond)
	require.ErrorIs(t, f.store.Load(ctx), context.Canceled)
	assert.Equal(t, 3, f.store.Len())
	require.Eventually(t, func() bool {
		return !f.store.InFlight()[OpLoad]
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, f.store.Len())
}

func TestStore_DateFilterUsesPracticeWallClock(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"a-1","client_id":"c-1","time":"2024-03-15T23:50:00","status":"scheduled"}]`)
	}))
	t.Cleanup(srv.Close)
	api, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Logger: logging.Discard(), Location: jst})
	require.NoError(t, err)
	store := NewStore(api, clients.NewStore(api, logging.Discard()), logging.Discard(), WithLocation(jst))
	require.NoError(t, store.Load(context.Background()))

	state := views.NewState(10)
	state.SetDate(time.Date(2024, 3, 15, 0, 0, 0, 0, jst))
	require.Len(t, store.View(state).Items, 1)
	assert.Equal(t, "a-1", store.View(state).Items[0].ID)

	state.SetDate(time.Date(2024, 3, 16, 0, 0, 0, 0, jst))
	assert.Empty(t, store.View(state).Items)
}

func TestStore_CreateRequiresFutureTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Create(context.Background(), apiclient.Appointment{ClientID: "c-1", Time: now.Add(-time.Hour)})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Date must be in the future", verrs.Fields["time"])

	_, err = f.store.Create(context.Background(), apiclient.Appointment{})
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "This field is required", verrs.Fields["client_id"])
	assert.Equal(t, "This field is required", verrs.Fields["time"])
	assert.Equal(t, 0, f.backend.Hits("POST /api/appointments/"))
	assert.False(t, f.store.InFlight()[OpSchedule])
}

func TestStore_CreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))

	created, err := f.store.Create(context.Background(), apiclient.Appointment{ClientID: "c-2", Time: now.Add(72 * time.Hour), Notes: "Intake"})
	require.NoError(t, err)
	assert.Equal(t, apiclient.AppointmentScheduled, created.Status)
	assert.Equal(t, "John Smith", created.ClientName())
	assert.Equal(t, 4, f.store.Len())

	past := *created
	past.Time = now.Add(-time.Hour)
	past.Status = apiclient.AppointmentNoShow
	updated, err := f.store.Update(context.Background(), created.ID, past)
	require.NoError(t, err)
	assert.Equal(t, apiclient.AppointmentNoShow, updated.Status)
	assert.Equal(t, 1, f.store.Counts()["no-show"])
}

func TestStore_UpdateFailureLeavesCollectionUnchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))
	before := f.store.Items()

	_, err := f.store.Update(context.Background(), "missing", apiclient.Appointment{ClientID: "c-1", Time: now})
	assert.True(t, apiclient.IsNotFound(err))
	assert.Equal(t, before, f.store.Items())
	assert.False(t, f.store.InFlight()[OpUpdate])
}

func TestStore_DeleteAndForgetClient(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))

	require.NoError(t, f.store.Delete(context.Background(), "a-2"))
	assert.Equal(t, 2, f.store.Len())

	f.clients.OnDelete(f.store.ForgetClient)
	require.NoError(t, f.clients.Delete(context.Background(), "c-1"))
	assert.Equal(t, 0, f.store.Len())
}

func TestStore_CheckConflicts(t *testing.T) {
	f := newFixture(t)

	res, err := f.store.CheckConflicts(context.Background(), apiclient.ConflictCheck{ClientID: "c-1", AppointmentTime: now.Add(24*time.Hour + 30*time.Minute)})
	require.NoError(t, err)
	assert.True(t, res.HasConflicts)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "a-1", res.Conflicts[0].ID)

	res, err = f.store.CheckConflicts(context.Background(), apiclient.ConflictCheck{ClientID: "c-1", AppointmentTime: now.Add(24 * time.Hour), ExcludeAppointmentID: "a-1"})
	require.NoError(t, err)
	assert.False(t, res.HasConflicts)
	assert.Empty(t, res.Conflicts)

	_, err = f.store.CheckConflicts(context.Background(), apiclient.ConflictCheck{})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields, "client_id")
	assert.Contains(t, verrs.Fields, "appointment_time")
}

func TestStore_CreateRecurringReloads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))

	res, err := f.store.CreateRecurring(context.Background(), apiclient.RecurringRequest{
		BaseAppointment: apiclient.Appointment{ClientID: "c-2", Time: now.Add(7 * 24 * time.Hour)},
		Pattern:         apiclient.RecurringPattern{Frequency: apiclient.FrequencyWeekly, Count: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created())
	assert.Equal(t, 7, f.store.Len())
	assert.False(t, f.store.InFlight()[OpRecurring])
}

func TestStore_CreateRecurringValidatesPattern(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateRecurring(context.Background(), apiclient.RecurringRequest{
		BaseAppointment: apiclient.Appointment{ClientID: "c-2", Time: now.Add(time.Hour)},
		Pattern:         apiclient.RecurringPattern{Frequency: "yearly", Count: 0},
	})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields, "frequency")
	assert.Contains(t, verrs.Fields, "count")
	assert.Equal(t, 0, f.backend.Hits("POST /api/appointments/recurring"))
}

func TestStore_Reminders(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Load(context.Background()))

	pending, err := f.store.PendingReminders(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	resp, err := f.store.SendReminder(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "Reminder sent successfully", resp.Message)

	for _, a := range f.store.Items() {
		if a.ID == "a-1" {
			assert.True(t, a.ReminderSent)
		}
	}
	pending, err = f.store.PendingReminders(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_AnalyticsAndTrends(t *testing.T) {
	f := newFixture(t)
	stats, err := f.store.Analytics(context.Background(), apiclient.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAppointments)
	assert.Equal(t, 1, stats.CompletedAppointments)

	raw, err := f.store.Trends(context.Background(), 7)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"days":"7"`)
}
