package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HealthResult is the outcome of one health check.
type HealthResult struct {
	Status  int
	Body    json.RawMessage
	Latency time.Duration
}

// CheckHealth issues a single GET to path bounded by timeout, without retries.
// On failure the returned result still carries the status (0 without a
// response) and the measured latency alongside the *Error.
func (c *API) CheckHealth(ctx context.Context, path string, timeout time.Duration) (*HealthResult, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	operation := "health " + path
	ctx, span := tracer.Start(ctx, "backend.health", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("wellness.backend.path", path))

	start := time.Now()
	resp, apiErr := c.attempt(ctx, http.MethodGet, c.buildURL(path, nil), nil, timeout)
	latency := time.Since(start)

	if apiErr != nil {
		apiErr.Operation = operation
		apiErr.Attempts = 1
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		c.metrics.ObserveCall(operation, outcomeLabel(apiErr.Kind), latency.Seconds())
		return &HealthResult{Status: apiErr.Status, Latency: latency}, apiErr
	}
	span.SetStatus(codes.Ok, "")
	c.metrics.ObserveCall(operation, "ok", latency.Seconds())

	result := &HealthResult{Status: resp.status, Latency: latency}
	if json.Valid(resp.body) {
		result.Body = resp.body
	}
	return result, nil
}
