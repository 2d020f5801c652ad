package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

func (c *API) DashboardAnalytics(ctx context.Context) (*DashboardAnalytics, error) {
	var out DashboardAnalytics
	if err := c.Do(ctx, Request{
		Operation: "analytics.dashboard",
		Method:    http.MethodGet,
		Path:      "/api/analytics/dashboard",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *API) SystemTrends(ctx context.Context, days int) (json.RawMessage, error) {
	return c.rawJSON(ctx, Request{
		Operation: "analytics.trends",
		Method:    http.MethodGet,
		Path:      "/api/analytics/trends",
		Query:     daysQuery(days),
	})
}

func (c *API) ClientActivityReport(ctx context.Context, q ReportQuery) (json.RawMessage, error) {
	query := url.Values{}
	setIf(query, "client_id", q.ClientID)
	setTime(query, "date_from", q.From)
	setTime(query, "date_to", q.To)
	return c.rawJSON(ctx, Request{
		Operation: "analytics.client_activity",
		Method:    http.MethodGet,
		Path:      "/api/analytics/reports/client-activity",
		Query:     query,
	})
}

func (c *API) AppointmentPerformanceReport(ctx context.Context, r DateRange) (json.RawMessage, error) {
	query := url.Values{}
	setTime(query, "date_from", r.From)
	setTime(query, "date_to", r.To)
	return c.rawJSON(ctx, Request{
		Operation: "analytics.appointment_performance",
		Method:    http.MethodGet,
		Path:      "/api/analytics/reports/appointment-performance",
		Query:     query,
	})
}

// Health calls the backend liveness endpoint.
func (c *API) Health(ctx context.Context) (json.RawMessage, error) {
	return c.rawJSON(ctx, Request{
		Operation: "health",
		Method:    http.MethodGet,
		Path:      "/health",
	})
}

// HealthDetailed calls the backend's dependency health endpoint.
func (c *API) HealthDetailed(ctx context.Context) (json.RawMessage, error) {
	return c.rawJSON(ctx, Request{
		Operation: "health.detailed",
		Method:    http.MethodGet,
		Path:      "/health/detailed",
	})
}
