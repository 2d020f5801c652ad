package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errIDRequired = errors.New("apiclient: id is required")

// ListClients returns every client matching q.
func (c *API) ListClients(ctx context.Context, q ClientQuery) ([]Client, error) {
	query := url.Values{}
	setIf(query, "search", q.Search)
	setIf(query, "status", q.Status)
	setTime(query, "created_after", q.CreatedAfter)
	setTime(query, "created_before", q.CreatedBefore)
	return fetchList[Client](ctx, c, Request{
		Operation: "clients.list",
		Method:    http.MethodGet,
		Path:      "/api/clients/",
		Query:     query,
	}, "clients", "data")
}

// GetClient fetches one client by ID.
func (c *API) GetClient(ctx context.Context, id string) (*Client, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	var out Client
	if err := c.Do(ctx, Request{
		Operation: "clients.get",
		Method:    http.MethodGet,
		Path:      "/api/clients/" + url.PathEscape(id),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClient creates a client; the server assigns the ID.
func (c *API) CreateClient(ctx context.Context, in Client) (*Client, error) {
	in.ID = ""
	var out Client
	if err := c.Do(ctx, Request{
		Operation: "clients.create",
		Method:    http.MethodPost,
		Path:      "/api/clients/",
		Body:      in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateClient replaces the client record identified by id.
func (c *API) UpdateClient(ctx context.Context, id string, in Client) (*Client, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	in.ID = ""
	var out Client
	if err := c.Do(ctx, Request{
		Operation: "clients.update",
		Method:    http.MethodPut,
		Path:      "/api/clients/" + url.PathEscape(id),
		Body:      in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClient removes a client. The backend cascades to its appointments.
func (c *API) DeleteClient(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errIDRequired
	}
	return c.Do(ctx, Request{
		Operation: "clients.delete",
		Method:    http.MethodDelete,
		Path:      "/api/clients/" + url.PathEscape(id),
	}, nil)
}

// ClientAppointments lists the appointments of one client.
func (c *API) ClientAppointments(ctx context.Context, id string) ([]Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	return fetchList[Appointment](ctx, c, Request{
		Operation: "clients.appointments",
		Method:    http.MethodGet,
		Path:      "/api/clients/" + url.PathEscape(id) + "/appointments",
	}, "appointments", "data")
}

// ClientAnalytics returns per-client statistics.
func (c *API) ClientAnalytics(ctx context.Context, id string) (*SingleClientAnalytics, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errIDRequired
	}
	var out SingleClientAnalytics
	if err := c.Do(ctx, Request{
		Operation: "clients.analytics",
		Method:    http.MethodGet,
		Path:      "/api/clients/" + url.PathEscape(id) + "/analytics",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClientsOverview returns practice-wide client analytics.
func (c *API) ClientsOverview(ctx context.Context) (*ClientAnalytics, error) {
	var out ClientAnalytics
	if err := c.Do(ctx, Request{
		Operation: "clients.overview",
		Method:    http.MethodGet,
		Path:      "/api/clients/analytics",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportClientsCSV downloads the client export, optionally for one status.
func (c *API) ExportClientsCSV(ctx context.Context, status string) (*RawResponse, error) {
	query := url.Values{}
	setIf(query, "status", status)
	resp, err := c.Raw(ctx, Request{
		Operation: "clients.export",
		Method:    http.MethodGet,
		Path:      "/api/clients/export/csv",
		Query:     query,
	})
	if err != nil {
		return nil, err
	}
	if resp.Filename == "" {
		resp.Filename = "clients_export.csv"
	}
	if resp.ContentType == "" {
		resp.ContentType = "text/csv"
	}
	return resp, nil
}

func fetchList[T any](ctx context.Context, c *API, req Request, keys ...string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, req, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw, keys...)
	if err != nil {
		return nil, &Error{
			Kind:      KindDecode,
			Status:    http.StatusOK,
			Message:   "Unexpected response from server",
			Operation: req.Operation,
			Err:       fmt.Errorf("decode list: %w", err),
		}
	}
	Localize(items, c.loc)
	return items, nil
}

func setIf(q url.Values, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		q.Set(key, v)
	}
}

func setTime(q url.Values, key string, t *time.Time) {
	if t != nil && !t.IsZero() {
		q.Set(key, t.Format(time.RFC3339))
	}
}
