package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/wellness-dashboard/internal/api/router"
	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/appointments"
	"github.com/wolfman30/wellness-dashboard/internal/clients"
	appconfig "github.com/wolfman30/wellness-dashboard/internal/config"
	"github.com/wolfman30/wellness-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/wellness-dashboard/internal/http/middleware"
	"github.com/wolfman30/wellness-dashboard/internal/observability/metrics"
	"github.com/wolfman30/wellness-dashboard/internal/status"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// Dashboard is the wired dashboard service.
type Dashboard struct {
	Handler      http.Handler
	API          *apiclient.API
	Clients      *clients.Store
	Appointments *appointments.Store
	Monitor      *status.Monitor
	Registry     *prometheus.Registry

	limiter *httpmiddleware.RateLimiter
	redis   *redis.Client
	logger  *logging.Logger
	stop    chan struct{}
}

// Options override infrastructure for tests.
type Options struct {
	Registry    *prometheus.Registry
	RedisClient *redis.Client
	HTTPClient  *http.Client
}

// BuildDashboard wires the API client, stores, status monitor and router.
// Nothing is started and no backend call is made.
func BuildDashboard(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Dashboard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	loc := cfg.Location()
	api, err := apiclient.New(apiclient.Config{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.BackendTimeout,
		MaxAttempts: cfg.BackendRetryAttempts,
		Backoff:     cfg.BackendRetryBaseDelay,
		HTTPClient:  opts.HTTPClient,
		Logger:      logger,
		Metrics:     metrics.NewBackendMetrics(reg),
		Location:    loc,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: api client: %w", err)
	}

	clientStore := clients.NewStore(api, logger)
	apptStore := appointments.NewStore(api, clientStore, logger, appointments.WithLocation(loc))
	clientStore.OnDelete(apptStore.ForgetClient)

	redisClient := opts.RedisClient
	if redisClient == nil {
		redisClient = BuildRedisClient(ctx, cfg, logger, true)
	}
	monitor := status.NewMonitor(api, logger).
		WithInterval(cfg.StatusPollInterval).
		WithCheckTimeout(cfg.StatusCheckTimeout)
	if cache := BuildStatusCache(redisClient); cache != nil {
		monitor = monitor.WithCache(cache)
		logger.Info("status snapshot cache enabled", "redis_addr", cfg.RedisAddr)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	origins := httpmiddleware.NewOriginPolicy(cfg.CORSAllowedOrigins)
	handler := router.New(&router.Config{
		Logger:             logger,
		Clients:            handlers.NewClientsHandler(clientStore, cfg.DefaultPageSize, logger),
		Appointments:       handlers.NewAppointmentsHandler(apptStore, cfg.DefaultPageSize, loc, logger),
		Analytics:          handlers.NewAnalyticsHandler(api, loc, logger),
		Status:             handlers.NewStatusHandler(monitor, logger).WithOriginCheck(origins.Allowed),
		Overview:           handlers.NewOverviewHandler(clientStore, apptStore, monitor, reg, logger),
		Forms:              handlers.NewFormsHandler(loc, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HTTPMetrics:        metrics.NewHTTPMetrics(reg),
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &Dashboard{
		Handler:      handler,
		API:          api,
		Clients:      clientStore,
		Appointments: apptStore,
		Monitor:      monitor,
		Registry:     reg,
		limiter:      limiter,
		redis:        redisClient,
		logger:       logger,
		stop:         make(chan struct{}),
	}, nil
}

// Warm loads both collections in parallel. Appointment client names are
// resolved on read, so load order does not matter. Failures degrade to
// empty collections and are logged.
func (d *Dashboard) Warm(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.Clients.Load(gctx); err != nil {
			d.logger.Warn("initial client load failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.Appointments.Load(gctx); err != nil {
			d.logger.Warn("initial appointment load failed", "error", err)
		}
		return nil
	})
	_ = g.Wait()
	d.logger.Info("collections loaded", "clients", d.Clients.Len(), "appointments", d.Appointments.Len())
}

// Start begins status polling and the rate limiter sweeper.
func (d *Dashboard) Start(ctx context.Context) {
	d.Monitor.Start(ctx)
	go d.limiter.RunSweeper(d.stop)
}

// Close stops background work and releases the Redis connection.
func (d *Dashboard) Close() error {
	d.Monitor.Stop()
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.redis != nil {
		return d.redis.Close()
	}
	return nil
}
