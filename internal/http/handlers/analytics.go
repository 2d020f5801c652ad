package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// AnalyticsSource is the slice of the backend client the analytics
// screens read from.
type AnalyticsSource interface {
	DashboardAnalytics(ctx context.Context) (*apiclient.DashboardAnalytics, error)
	SystemTrends(ctx context.Context, days int) (json.RawMessage, error)
	ClientActivityReport(ctx context.Context, q apiclient.ReportQuery) (json.RawMessage, error)
	AppointmentPerformanceReport(ctx context.Context, r apiclient.DateRange) (json.RawMessage, error)
	AppointmentAnalytics(ctx context.Context, r apiclient.DateRange) (*apiclient.AppointmentAnalytics, error)
}

// AnalyticsHandler proxies the backend's analytics and report endpoints.
type AnalyticsHandler struct {
	source AnalyticsSource
	loc    *time.Location
	logger *logging.Logger
}

func NewAnalyticsHandler(source AnalyticsSource, loc *time.Location, logger *logging.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsHandler{source: source, loc: loc, logger: logger}
}

func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.source.DashboardAnalytics(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.source.SystemTrends(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Appointments handles GET /api/analytics/appointments?date_from=&date_to=.
func (h *AnalyticsHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r, h.loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.source.AppointmentAnalytics(r.Context(), rng)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) ClientActivity(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r, h.loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.source.ClientActivityReport(r.Context(), apiclient.ReportQuery{
		ClientID:  strings.TrimSpace(r.URL.Query().Get("client_id")),
		DateRange: rng,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) AppointmentPerformance(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r, h.loc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out, err := h.source.AppointmentPerformanceReport(r.Context(), rng)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
