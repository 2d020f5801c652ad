// Package status polls the practice backend's health endpoints and
// publishes the combined system status.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// Health endpoints checked on the backend.
const (
	APIServerPath = "/health"
	DatabasePath  = "/health/detailed"
)

const (
	defaultInterval     = 30 * time.Second
	defaultCheckTimeout = 5 * time.Second
	subscriberBuffer    = 1
)

// HealthChecker performs a single health request.
type HealthChecker interface {
	CheckHealth(ctx context.Context, path string, timeout time.Duration) (*apiclient.HealthResult, error)
}

// Cache shares the latest snapshot between dashboard replicas.
type Cache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot, ttl time.Duration) error
}

// Monitor owns the polling goroutine and the latest snapshot.
type Monitor struct {
	checker      HealthChecker
	cache        Cache
	logger       *logging.Logger
	interval     time.Duration
	checkTimeout time.Duration
	now          func() time.Time

	mu          sync.RWMutex
	current     Snapshot
	checked     bool
	checking    int
	subscribers map[int]chan Snapshot
	nextSub     int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(checker HealthChecker, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		checker:      checker,
		logger:       logger,
		interval:     defaultInterval,
		checkTimeout: defaultCheckTimeout,
		now:          time.Now,
		current:      InitialSnapshot(),
		subscribers:  make(map[int]chan Snapshot),
	}
}

func (m *Monitor) WithInterval(d time.Duration) *Monitor {
	if d > 0 {
		m.interval = d
	}
	return m
}

func (m *Monitor) WithCheckTimeout(d time.Duration) *Monitor {
	if d > 0 {
		m.checkTimeout = d
	}
	return m
}

// WithCache enables sharing snapshots through c.
func (m *Monitor) WithCache(c Cache) *Monitor {
	m.cache = c
	return m
}

func (m *Monitor) Interval() time.Duration { return m.interval }

// Start launches the poller: one check immediately, then one per interval.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
	m.logger.Info("status monitor started", "interval", m.interval.String())
}

// Stop cancels the poller and waits for it to exit. It is safe to call
// more than once and on a monitor that was never started.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("status monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh checks both dependencies in parallel and publishes the result.
// A refresh interrupted by ctx keeps the previous snapshot.
func (m *Monitor) Refresh(ctx context.Context) Snapshot {
	m.mu.Lock()
	m.checking++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.checking--
		m.mu.Unlock()
	}()

	var api, db Component
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		api = m.checkAPIServer(gctx)
		return nil
	})
	g.Go(func() error {
		db = m.checkDatabase(gctx)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return m.Current(context.Background())
	}

	checkedAt := m.now().UTC()
	snap := Snapshot{APIServer: api, Database: db, CheckedAt: &checkedAt}
	m.publish(snap)

	if m.cache != nil {
		if err := m.cache.Save(ctx, snap, 2*m.interval); err != nil {
			m.logger.Warn("status cache save failed", "error", err)
		}
	}
	if !snap.Healthy() {
		m.logger.Warn("backend unhealthy",
			"api_server", string(api.Status), "api_message", api.Message,
			"database", string(db.Status), "database_message", db.Message,
		)
	}
	return snap
}

// Current returns the latest snapshot. Before the first local check
// completes it falls back to the shared cache.
func (m *Monitor) Current(ctx context.Context) Snapshot {
	m.mu.RLock()
	snap, checked := m.current, m.checked
	m.mu.RUnlock()
	if checked || m.cache == nil {
		return snap
	}
	cached, err := m.cache.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.logger.Warn("status cache load failed", "error", err)
		}
		return snap
	}
	return *cached
}

// Checking reports whether a refresh is in progress.
func (m *Monitor) Checking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checking > 0
}

// Subscribe returns a channel receiving every published snapshot and a
// func that unsubscribes. A subscriber that falls behind misses updates
// instead of blocking the poller; only the newest pending snapshot is kept.
func (m *Monitor) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Monitor) publish(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = snap
	m.checked = true
	for _, ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (m *Monitor) checkAPIServer(ctx context.Context) Component {
	res, err := m.checker.CheckHealth(ctx, APIServerPath, m.checkTimeout)
	checked := m.now().UTC()
	c := Component{LastChecked: &checked}
	if err == nil {
		c.Status = StateOnline
		c.Message = fmt.Sprintf("Online (%dms)", res.Latency.Milliseconds())
		c.Details = res.Body
		return c
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && (apiErr.Kind == apiclient.KindHTTP4xx || apiErr.Kind == apiclient.KindHTTP5xx) {
		c.Status = StateError
		c.Message = fmt.Sprintf("HTTP %d", apiErr.Status)
		return c
	}
	c.Status = StateOffline
	c.Message = "Connection Failed"
	if apiErr != nil && apiErr.Kind == apiclient.KindTimeout {
		c.Message = "Timeout"
	}
	c.Details = errorDetails(err)
	return c
}

func (m *Monitor) checkDatabase(ctx context.Context) Component {
	res, err := m.checker.CheckHealth(ctx, DatabasePath, m.checkTimeout)
	checked := m.now().UTC()
	c := Component{LastChecked: &checked}
	if err == nil {
		c.Status = StateConnected
		c.Message = fmt.Sprintf("Connected (%dms)", res.Latency.Milliseconds())
		c.Details = res.Body
		return c
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && (apiErr.Kind == apiclient.KindHTTP4xx || apiErr.Kind == apiclient.KindHTTP5xx) {
		c.Status = StateError
		c.Message = "Database Error"
		return c
	}
	c.Status = StateDisconnected
	c.Message = "Connection Failed"
	c.Details = errorDetails(err)
	return c
}

func errorDetails(err error) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return data
}
