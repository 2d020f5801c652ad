package handlers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/observability/metrics"
	"github.com/wolfman30/wellness-dashboard/internal/status"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// Collection is a store the overview can count.
type Collection interface {
	Loaded() bool
	Load(ctx context.Context) error
	Counts() map[string]int
}

// StatusReader returns the latest system status.
type StatusReader interface {
	Current(ctx context.Context) status.Snapshot
}

// OverviewHandler serves the dashboard landing summary.
type OverviewHandler struct {
	clients      Collection
	appointments Collection
	status       StatusReader
	gatherer     prometheus.Gatherer
	logger       *logging.Logger
}

func NewOverviewHandler(clients, appointments Collection, st StatusReader, gatherer prometheus.Gatherer, logger *logging.Logger) *OverviewHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OverviewHandler{
		clients:      clients,
		appointments: appointments,
		status:       st,
		gatherer:     gatherer,
		logger:       logger,
	}
}

// OverviewResponse contains the landing-page summary.
type OverviewResponse struct {
	ActiveClients         int                     `json:"active_clients"`
	TotalClients          int                     `json:"total_clients"`
	ScheduledAppointments int                     `json:"scheduled_appointments"`
	TotalAppointments     int                     `json:"total_appointments"`
	ClientCounts          map[string]int          `json:"client_counts"`
	AppointmentCounts     map[string]int          `json:"appointment_counts"`
	Status                status.Snapshot         `json:"status"`
	BackendLatency        metrics.LatencySnapshot `json:"backend_latency"`
}

// Get handles GET /api/overview. Collections not loaded yet are loaded in
// parallel; a failed load is reported as zero counts.
func (h *OverviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, gctx := errgroup.WithContext(r.Context())
	for _, c := range []Collection{h.clients, h.appointments} {
		if c.Loaded() {
			continue
		}
		g.Go(func() error {
			if err := c.Load(gctx); err != nil {
				h.logger.Warn("overview load failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	clientCounts := h.clients.Counts()
	apptCounts := h.appointments.Counts()
	writeJSON(w, http.StatusOK, OverviewResponse{
		ActiveClients:         clientCounts[string(apiclient.ClientActive)],
		TotalClients:          clientCounts["total"],
		ScheduledAppointments: apptCounts[string(apiclient.AppointmentScheduled)],
		TotalAppointments:     apptCounts["total"],
		ClientCounts:          clientCounts,
		AppointmentCounts:     apptCounts,
		Status:                h.status.Current(r.Context()),
		BackendLatency:        metrics.SnapshotBackendLatency(h.gatherer),
	})
}
