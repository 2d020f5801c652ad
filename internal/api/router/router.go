package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/wellness-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/wellness-dashboard/internal/http/middleware"
	"github.com/wolfman30/wellness-dashboard/internal/observability/metrics"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Clients            *handlers.ClientsHandler
	Appointments       *handlers.AppointmentsHandler
	Analytics          *handlers.AnalyticsHandler
	Status             *handlers.StatusHandler
	Overview           *handlers.OverviewHandler
	Forms              *handlers.FormsHandler
	MetricsHandler     http.Handler
	HTTPMetrics        *metrics.HTTPMetrics
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.Metrics(cfg.HTTPMetrics))

	// Operational endpoints are exempt from rate limiting.
	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))

		if cfg.Overview != nil {
			api.Get("/overview", cfg.Overview.Get)
		}

		if cfg.Status != nil {
			api.Route("/status", func(r chi.Router) {
				r.Get("/", cfg.Status.Get)
				r.Post("/refresh", cfg.Status.Refresh)
				r.Get("/stream", cfg.Status.Stream)
			})
		}

		if cfg.Clients != nil {
			api.Route("/clients", func(r chi.Router) {
				r.Get("/", cfg.Clients.List)
				r.Post("/", cfg.Clients.Create)
				r.Post("/reload", cfg.Clients.Reload)
				r.Get("/analytics", cfg.Clients.Overview)
				r.Get("/export.csv", cfg.Clients.ExportCSV)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Clients.Get)
					r.Put("/", cfg.Clients.Update)
					r.Delete("/", cfg.Clients.Delete)
					r.Get("/appointments", cfg.Clients.Appointments)
					r.Get("/analytics", cfg.Clients.Analytics)
				})
			})
		}

		if cfg.Appointments != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.Appointments.List)
				r.Post("/", cfg.Appointments.Create)
				r.Post("/reload", cfg.Appointments.Reload)
				r.Post("/conflicts", cfg.Appointments.CheckConflicts)
				r.Post("/recurring", cfg.Appointments.CreateRecurring)
				r.Get("/reminders", cfg.Appointments.PendingReminders)
				r.Get("/trends", cfg.Appointments.Trends)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Appointments.Get)
					r.Put("/", cfg.Appointments.Update)
					r.Delete("/", cfg.Appointments.Delete)
					r.Post("/send-reminder", cfg.Appointments.SendReminder)
				})
			})
		}

		if cfg.Forms != nil {
			api.Post("/forms/{form}/validate", cfg.Forms.Validate)
		}

		if cfg.Analytics != nil {
			api.Route("/analytics", func(r chi.Router) {
				r.Get("/dashboard", cfg.Analytics.Dashboard)
				r.Get("/trends", cfg.Analytics.Trends)
				r.Get("/appointments", cfg.Analytics.Appointments)
				r.Get("/reports/client-activity", cfg.Analytics.ClientActivity)
				r.Get("/reports/appointment-performance", cfg.Analytics.AppointmentPerformance)
			})
		}
	})

	return r
}
