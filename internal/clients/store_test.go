package clients

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/apiclient/apiclienttest"
	"github.com/wolfman30/wellness-dashboard/internal/validation"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

var _ Backend = (*apiclient.API)(nil)

func newStore(t *testing.T) (*Store, *apiclienttest.Backend) {
	t.Helper()
	backend := apiclienttest.New(t)
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return NewStore(backend.NewClient(t), logging.Discard(), WithClock(clock)), backend
}

func seed(backend *apiclienttest.Backend) {
	backend.SeedClients(
		apiclient.Client{ID: "c-1", Name: "Jane Doe", Email: "jane@example.com", Status: apiclient.ClientActive},
		apiclient.Client{ID: "c-2", Name: "John Smith", Email: "john@example.com", Status: apiclient.ClientInactive},
		apiclient.Client{ID: "c-3", Name: "Ana Lima", Email: "ana@example.com", Status: apiclient.ClientActive},
	)
}

func TestStore_LoadAndView(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)

	require.NoError(t, store.Load(context.Background()))
	assert.True(t, store.Loaded())
	assert.Equal(t, 3, store.Len())

	state := views.NewState(2)
	state.SetStatus("active")
	page := store.View(state)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, "Jane Doe", page.Items[0].Name)

	assert.Equal(t, map[string]int{"total": 3, "active": 2, "inactive": 1, "pending": 0}, store.Counts())
}

func TestStore_FirstLoadFailureDegradesToEmpty(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	backend.Fail("GET /api/clients/", http.StatusInternalServerError, `{"detail":"boom"}`)

	err := store.Load(context.Background())
	require.Error(t, err)
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
	assert.True(t, store.Loaded())
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.View(views.NewState(5)).Items)
}

func TestStore_ReloadFailureKeepsItems(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))

	backend.Fail("GET /api/clients/", http.StatusInternalServerError, `{"detail":"boom"}`)
	require.Error(t, store.Load(context.Background()))
	assert.Equal(t, 3, store.Len())
	assert.Len(t, store.View(views.NewState(5)).Items, 3)
}

func TestStore_CanceledCallerDoesNotDiscardLoad(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))

	backend.SeedClients(apiclient.Client{ID: "c-4", Name: "Mia Chen", Email: "mia@example.com"})
	backend.Delay("GET /api/clients/", 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, store.Loaded())
	assert.Equal(t, 3, store.Len())

	require.Eventually(t, func() bool {
		return store.Len() == 4 && !store.InFlight()[OpLoad]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStore_CanceledFirstLoadStillCompletes(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	backend.Delay("GET /api/clients/", 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Load(ctx), context.Canceled)
	assert.False(t, store.Loaded())
	require.Eventually(t, func() bool { return store.Loaded() && store.Len() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestStore_ConcurrentLoadsAreCollapsed(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	backend.Delay("GET /api/clients/", 100*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Load(context.Background()))
		}()
	}
	wg.Wait()
	assert.Less(t, backend.Hits("GET /api/clients/"), 5)
	assert.Equal(t, 3, store.Len())
}

func TestStore_CreateValidatesBeforeCalling(t *testing.T) {
	store, backend := newStore(t)

	_, err := store.Create(context.Background(), apiclient.Client{Name: "J", Email: "nope"})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Must be at least 2 characters long", verrs.Fields["name"])
	assert.Equal(t, "Please enter a valid email address", verrs.Fields["email"])
	assert.Equal(t, 0, backend.Hits("POST /api/clients/"))
	assert.False(t, store.InFlight()[OpAdd])
}

func TestStore_CreateAppendsRefetchedRecord(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))

	created, err := store.Create(context.Background(), apiclient.Client{Name: "Mia Wong", Email: "mia@example.com", Phone: "+1 555 010 0199"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, apiclient.ClientActive, created.Status)
	assert.Equal(t, 4, store.Len())
	assert.Equal(t, 1, backend.Hits("GET /api/clients/"+created.ID))

	got, ok := store.Lookup(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Mia Wong", got.Name)
}

func TestStore_CreateFailureLeavesCollectionUnchanged(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))
	before := store.Items()

	_, err := store.Create(context.Background(), apiclient.Client{Name: "Jane Again", Email: "jane@example.com"})
	require.Error(t, err)
	assert.True(t, apiclient.IsEmailTaken(err))
	assert.Equal(t, before, store.Items())
	assert.False(t, store.InFlight()[OpAdd])
}

func TestStore_Update(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))

	updated, err := store.Update(context.Background(), "c-2", apiclient.Client{Name: "John Smith", Email: "john@example.com", Status: apiclient.ClientActive})
	require.NoError(t, err)
	assert.Equal(t, apiclient.ClientActive, updated.Status)
	got, _ := store.Lookup("c-2")
	assert.Equal(t, apiclient.ClientActive, got.Status)

	backend.Fail("PUT /api/clients/c-1", http.StatusServiceUnavailable, `{"message":"maintenance"}`)
	_, err = store.Update(context.Background(), "c-1", apiclient.Client{Name: "Jane D", Email: "jane@example.com"})
	require.Error(t, err)
	got, _ = store.Lookup("c-1")
	assert.Equal(t, "Jane Doe", got.Name)
	assert.False(t, store.InFlight()[OpUpdate])
}

func TestStore_DeleteRunsHooks(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	require.NoError(t, store.Load(context.Background()))

	var removed []string
	store.OnDelete(func(id string) { removed = append(removed, id) })

	require.NoError(t, store.Delete(context.Background(), "c-1"))
	assert.Equal(t, []string{"c-1"}, removed)
	_, ok := store.Lookup("c-1")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())

	err := store.Delete(context.Background(), "missing")
	assert.True(t, apiclient.IsNotFound(err))
	assert.Equal(t, []string{"c-1"}, removed)
}

func TestStore_GetNotFound(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ExportCSV(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)

	resp, err := store.ExportCSV(context.Background(), "all")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "Jane Doe")
	assert.Contains(t, string(resp.Body), "John Smith")

	resp, err = store.ExportCSV(context.Background(), "inactive")
	require.NoError(t, err)
	assert.NotContains(t, string(resp.Body), "Jane Doe")

	_, err = store.ExportCSV(context.Background(), "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStore_PassThroughs(t *testing.T) {
	store, backend := newStore(t)
	seed(backend)
	backend.SeedAppointments(apiclient.Appointment{ClientID: "c-1", Time: time.Now().Add(24 * time.Hour)})

	appts, err := store.Appointments(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	stats, err := store.Analytics(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UpcomingAppointments)

	overview, err := store.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalClients)
	assert.Equal(t, 2, overview.ActiveClients)
}
