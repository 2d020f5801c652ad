package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/apiclient/apiclienttest"
	appconfig "github.com/wolfman30/wellness-dashboard/internal/config"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

func testConfig(backendURL string) *appconfig.Config {
	return &appconfig.Config{
		Env:                   "test",
		BackendURL:            backendURL,
		BackendTimeout:        2 * time.Second,
		BackendRetryAttempts:  3,
		BackendRetryBaseDelay: time.Millisecond,
		StatusPollInterval:    time.Hour,
		StatusCheckTimeout:    time.Second,
		DefaultPageSize:       5,
		DisplayTimezone:       "UTC",
		RateLimitRPS:          100,
		RateLimitBurst:        100,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	if client := BuildRedisClient(context.Background(), nil, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client for nil config")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildDashboardRequiresConfig(t *testing.T) {
	_, err := BuildDashboard(context.Background(), nil, logging.Discard(), Options{})
	require.Error(t, err)
}

func TestBuildDashboardRejectsBadBackendURL(t *testing.T) {
	_, err := BuildDashboard(context.Background(), testConfig(""), logging.Discard(), Options{Registry: prometheus.NewRegistry()})
	require.Error(t, err)
}

func TestDashboardWarmAndServe(t *testing.T) {
	backend := apiclienttest.New(t)
	backend.SeedClients(
		apiclient.Client{ID: "c-1", Name: "Jane Doe", Email: "jane@example.com"},
		apiclient.Client{ID: "c-2", Name: "John Smith", Email: "john@example.com", Status: apiclient.ClientInactive},
	)
	backend.SeedAppointments(apiclient.Appointment{ID: "a-1", ClientID: "c-1", Time: time.Now().Add(time.Hour)})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d, err := BuildDashboard(context.Background(), testConfig(backend.URL()), logging.Discard(), Options{
		Registry:    prometheus.NewRegistry(),
		RedisClient: rdb,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	d.Warm(context.Background())
	assert.Equal(t, 2, d.Clients.Len())
	assert.Equal(t, 1, d.Appointments.Len())

	snap := d.Monitor.Refresh(context.Background())
	assert.True(t, snap.Healthy())
	assert.True(t, mr.Exists("wellness:dashboard:status"))

	rr := httptest.NewRecorder()
	d.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"active_clients":1`)
}

func TestDashboardDeleteCascadesToAppointments(t *testing.T) {
	backend := apiclienttest.New(t)
	backend.SeedClients(apiclient.Client{ID: "c-1", Name: "Jane Doe", Email: "jane@example.com"})
	backend.SeedAppointments(
		apiclient.Appointment{ID: "a-1", ClientID: "c-1", Time: time.Now().Add(time.Hour)},
		apiclient.Appointment{ID: "a-2", ClientID: "c-1", Time: time.Now().Add(2 * time.Hour)},
	)

	d, err := BuildDashboard(context.Background(), testConfig(backend.URL()), logging.Discard(), Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	d.Warm(context.Background())
	require.Equal(t, 2, d.Appointments.Len())

	require.NoError(t, d.Clients.Delete(context.Background(), "c-1"))
	assert.Zero(t, d.Appointments.Len())
}

func TestDashboardWarmDegradesOnBackendFailure(t *testing.T) {
	backend := apiclienttest.New(t)
	backend.Fail("GET /api/clients/", http.StatusInternalServerError, `{"detail":"boom"}`)

	d, err := BuildDashboard(context.Background(), testConfig(backend.URL()), logging.Discard(), Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	d.Warm(context.Background())
	assert.Zero(t, d.Clients.Len())
	assert.True(t, d.Clients.Loaded())
	assert.Equal(t, 3, backend.Hits("GET /api/clients/"))
}

func TestDashboardStartClose(t *testing.T) {
	backend := apiclienttest.New(t)
	d, err := BuildDashboard(context.Background(), testConfig(backend.URL()), logging.Discard(), Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	require.Eventually(t, func() bool {
		return backend.Hits("GET /health") > 0 && !d.Monitor.Checking()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}
