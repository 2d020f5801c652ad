// Package apiclient is the dashboard's only path to the external practice
// backend. Every call is bounded by a per-attempt timeout, retried with
// exponential backoff unless the backend rejected the request itself, and
// fails with a single *Error shape.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/wellness-dashboard/internal/observability/metrics"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	defaultUserAgent   = "wellness-dashboard/1.0"
)

var tracer = otel.Tracer("wellness.internal.apiclient")

// Config controls how the backend client behaves.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
	Metrics     *metrics.BackendMetrics
	UserAgent   string
	// Location is the practice's wall-clock zone; offset-less backend
	// timestamps are read in it. Defaults to time.Local.
	Location    *time.Location
}

// API wraps the practice backend's REST endpoints.
type API struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *logging.Logger
	metrics     *metrics.BackendMetrics
	userAgent   string
	loc         *time.Location
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a configured API. Zero values default to
// 30s per attempt, 3 attempts, 1s initial backoff.
func New(cfg Config) (*API, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// The per-attempt context carries the deadline.
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &API{
		baseURL:     baseURL,
		httpClient:  httpClient,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		metrics:     cfg.Metrics,
		userAgent:   userAgent,
		loc:         loc,
		sleep:       sleepContext,
	}, nil
}

// BaseURL returns the backend root the client targets.
func (c *API) BaseURL() string { return c.baseURL }

// Location returns the zone offset-less timestamps are read in.
func (c *API) Location() *time.Location { return c.loc }

// Request describes one logical backend call.
type Request struct {
	// Operation is a low-cardinality name used for metrics, spans and logs.
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// RawResponse is a successful response body that is not decoded as JSON.
type RawResponse struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Do performs req and decodes a successful JSON body into out. A nil out
// discards the body.
func (c *API) Do(ctx context.Context, req Request, out any) error {
	data, _, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:      KindDecode,
			Status:    http.StatusOK,
			Message:   "Unexpected response from server",
			Operation: req.Operation,
			Err:       fmt.Errorf("decode response: %w", err),
		}
	}
	Localize(out, c.loc)
	return nil
}

// Raw performs req and returns the undecoded body, e.g. a CSV export.
func (c *API) Raw(ctx context.Context, req Request) (*RawResponse, error) {
	data, header, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RawResponse{
		Body:        data,
		ContentType: header.Get("Content-Type"),
		Filename:    filenameFromDisposition(header.Get("Content-Disposition")),
	}, nil
}

func (c *API) execute(ctx context.Context, req Request) ([]byte, http.Header, error) {
	if req.Operation == "" {
		req.Operation = strings.ToLower(req.Method) + " " + req.Path
	}
	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("apiclient: marshal %s body: %w", req.Operation, err)
		}
		payload = encoded
	}

	ctx, span := tracer.Start(ctx, "backend."+req.Operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("wellness.backend.path", req.Path),
	)

	start := time.Now()
	data, header, attempts, err := c.invoke(ctx, req, payload)
	elapsed := time.Since(start).Seconds()
	span.SetAttributes(attribute.Int("wellness.backend.attempts", attempts))

	if err != nil {
		apiErr, ok := AsError(err)
		if !ok {
			apiErr = networkError(err)
		}
		apiErr.Operation = req.Operation
		apiErr.Attempts = attempts
		span.SetAttributes(attribute.Int("http.status_code", apiErr.Status))
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		c.metrics.ObserveCall(req.Operation, outcomeLabel(apiErr.Kind), elapsed)
		return nil, nil, apiErr
	}
	span.SetStatus(codes.Ok, "")
	c.metrics.ObserveCall(req.Operation, "ok", elapsed)
	return data, header, nil
}

func (c *API) invoke(ctx context.Context, req Request, payload []byte) ([]byte, http.Header, int, error) {
	fullURL := c.buildURL(req.Path, req.Query)
	var lastErr *Error
	attempt := 0
	for attempt < c.maxAttempts {
		attempt++
		resp, apiErr := c.attempt(ctx, req.Method, fullURL, payload, c.timeout)
		if apiErr == nil {
			return resp.body, resp.header, attempt, nil
		}
		lastErr = apiErr
		if !apiErr.Retryable() || attempt == c.maxAttempts {
			break
		}
		delay := c.backoff * time.Duration(1<<(attempt-1))
		c.logRetry(req.Operation, attempt, delay, apiErr)
		c.metrics.ObserveRetry(req.Operation)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, nil, attempt, canceledError(err)
		}
	}
	return nil, nil, attempt, lastErr
}

type response struct {
	status int
	body   []byte
	header http.Header
}

// attempt performs a single HTTP exchange bounded by timeout.
func (c *API) attempt(ctx context.Context, method, fullURL string, payload []byte, timeout time.Duration) (*response, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, fullURL, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Code: CodeNetwork, Message: "Invalid request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.5")
	httpReq.Header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(attemptCtx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, err)
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, readErr)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeHTTPError(resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, body: data, header: resp.Header}, nil
}

func (c *API) classifyTransportError(parent, attemptCtx context.Context, err error) *Error {
	if parentErr := parent.Err(); parentErr != nil {
		if errors.Is(parentErr, context.DeadlineExceeded) {
			return timeoutError(parentErr)
		}
		return canceledError(parentErr)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return timeoutError(err)
	}
	return networkError(err)
}

func (c *API) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

func (c *API) logRetry(operation string, attempt int, delay time.Duration, err *Error) {
	c.logger.Warn("backend retry",
		"operation", operation,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
		"kind", string(err.Kind),
		"status", err.Status,
		"error", err.Message,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func outcomeLabel(kind Kind) string {
	return strings.ToLower(string(kind))
}

func filenameFromDisposition(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(name, `"`)
		}
	}
	return ""
}
