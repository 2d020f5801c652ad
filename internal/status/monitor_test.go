package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/apiclient/apiclienttest"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

var _ HealthChecker = (*apiclient.API)(nil)

func newMonitor(t *testing.T) (*Monitor, *apiclienttest.Backend) {
	t.Helper()
	backend := apiclienttest.New(t)
	m := NewMonitor(backend.NewClient(t), logging.Discard()).WithCheckTimeout(200 * time.Millisecond)
	return m, backend
}

func TestMonitor_InitialSnapshotIsChecking(t *testing.T) {
	m, _ := newMonitor(t)
	snap := m.Current(context.Background())
	assert.Equal(t, StateChecking, snap.APIServer.Status)
	assert.Equal(t, "Checking...", snap.Database.Message)
	assert.Nil(t, snap.APIServer.LastChecked)
	assert.False(t, snap.Healthy())
}

func TestMonitor_RefreshHealthy(t *testing.T) {
	m, backend := newMonitor(t)
	snap := m.Refresh(context.Background())

	assert.Equal(t, StateOnline, snap.APIServer.Status)
	assert.True(t, strings.HasPrefix(snap.APIServer.Message, "Online ("), snap.APIServer.Message)
	assert.True(t, strings.HasSuffix(snap.APIServer.Message, "ms)"))
	assert.JSONEq(t, `{"status":"healthy"}`, string(snap.APIServer.Details))
	assert.Equal(t, StateConnected, snap.Database.Status)
	assert.True(t, strings.HasPrefix(snap.Database.Message, "Connected ("))
	require.NotNil(t, snap.Database.LastChecked)
	assert.True(t, snap.Healthy())
	assert.Equal(t, 1, backend.Hits("GET /health"))
	assert.Equal(t, 1, backend.Hits("GET /health/detailed"))
	assert.Equal(t, snap, m.Current(context.Background()))
}

func TestMonitor_RefreshHTTPErrors(t *testing.T) {
	m, backend := newMonitor(t)
	backend.Fail("GET /health", http.StatusServiceUnavailable, `{"detail":"down"}`)
	backend.Fail("GET /health/detailed", http.StatusInternalServerError, "")

	snap := m.Refresh(context.Background())
	assert.Equal(t, StateError, snap.APIServer.Status)
	assert.Equal(t, "HTTP 503", snap.APIServer.Message)
	assert.Empty(t, snap.APIServer.Details)
	assert.Equal(t, StateError, snap.Database.Status)
	assert.Equal(t, "Database Error", snap.Database.Message)
	assert.Equal(t, 1, backend.Hits("GET /health"), "health checks are not retried")
}

func TestMonitor_RefreshTimeout(t *testing.T) {
	m, backend := newMonitor(t)
	backend.Delay("GET /health", time.Second)
	backend.Delay("GET /health/detailed", time.Second)

	snap := m.Refresh(context.Background())
	assert.Equal(t, StateOffline, snap.APIServer.Status)
	assert.Equal(t, "Timeout", snap.APIServer.Message)
	assert.Equal(t, StateDisconnected, snap.Database.Status)
	assert.Equal(t, "Connection Failed", snap.Database.Message)
}

func TestMonitor_RefreshConnectionFailed(t *testing.T) {
	client, err := apiclient.New(apiclient.Config{BaseURL: "http://127.0.0.1:1", Logger: logging.Discard()})
	require.NoError(t, err)
	m := NewMonitor(client, logging.Discard())

	snap := m.Refresh(context.Background())
	assert.Equal(t, StateOffline, snap.APIServer.Status)
	assert.Equal(t, "Connection Failed", snap.APIServer.Message)
	assert.Contains(t, string(snap.APIServer.Details), "error")
	assert.Equal(t, StateDisconnected, snap.Database.Status)
}

func TestMonitor_StartStop(t *testing.T) {
	m, backend := newMonitor(t)
	m.WithInterval(20 * time.Millisecond)
	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Start(context.Background())
	m.Start(context.Background())

	select {
	case snap := <-updates:
		assert.True(t, snap.Healthy())
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}
	require.Eventually(t, func() bool { return backend.Hits("GET /health") >= 3 }, 2*time.Second, 10*time.Millisecond)

	m.Stop()
	m.Stop()
	hits := backend.Hits("GET /health")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, hits, backend.Hits("GET /health"), "no checks after stop")
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m, _ := newMonitor(t)
	assert.NotPanics(t, m.Stop)
}

func TestMonitor_SlowSubscriberKeepsNewest(t *testing.T) {
	m, backend := newMonitor(t)
	updates, unsubscribe := m.Subscribe()

	m.Refresh(context.Background())
	backend.Fail("GET /health", http.StatusBadGateway, "")
	m.Refresh(context.Background())

	snap := <-updates
	assert.Equal(t, "HTTP 502", snap.APIServer.Message)

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	assert.False(t, open)
}

func TestMonitor_CanceledRefreshKeepsPrevious(t *testing.T) {
	m, _ := newMonitor(t)
	first := m.Refresh(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, first, m.Refresh(ctx))
}

func TestMonitor_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(redisClient)

	_, err := cache.Load(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)

	writer, _ := newMonitor(t)
	writer.WithInterval(time.Minute).WithCache(cache)
	published := writer.Refresh(context.Background())

	assert.Equal(t, 2*time.Minute, mr.TTL(defaultCacheKey))
	raw, err := mr.Get(defaultCacheKey)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, true, decoded["healthy"])

	reader, _ := newMonitor(t)
	reader.WithCache(cache)
	fromCache := reader.Current(context.Background())
	assert.Equal(t, published.APIServer.Status, fromCache.APIServer.Status)
	assert.Equal(t, published.APIServer.Message, fromCache.APIServer.Message)
	assert.True(t, fromCache.Healthy())
}

func TestRedisCache_CustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()})).WithKey("staging:status")
	require.NoError(t, cache.Save(context.Background(), InitialSnapshot(), time.Minute))
	assert.True(t, mr.Exists("staging:status"))
	assert.False(t, mr.Exists(defaultCacheKey))
}
