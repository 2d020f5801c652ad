package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/appointments"
	"github.com/wolfman30/wellness-dashboard/internal/clients"
	"github.com/wolfman30/wellness-dashboard/internal/validation"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details json.RawMessage   `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates store and backend failures into HTTP responses.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var (
		verrs  *validation.Errors
		perr   *views.ParamError
		reqErr *requestError
	)
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: verrs.Fields})
		return
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: perr.Error()})
		return
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: reqErr.msg})
		return
	case errors.Is(err, clients.ErrNotFound), errors.Is(err, appointments.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	case errors.Is(err, clients.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid status filter"})
		return
	}

	apiErr, ok := apiclient.AsError(err)
	if !ok {
		switch {
		case errors.Is(err, context.Canceled):
			writeJSON(w, 499, ErrorResponse{Error: "request canceled"})
		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "request timeout"})
		default:
			logger.Error("request failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
		return
	}

	body := ErrorResponse{Error: apiErr.Message, Code: apiErr.Code, Details: apiErr.Details}
	if apiclient.IsEmailTaken(err) {
		body.Fields = map[string]string{validation.FieldEmail: apiErr.Message}
	}
	status := http.StatusBadGateway
	switch apiErr.Kind {
	case apiclient.KindHTTP4xx:
		status = apiErr.Status
	case apiclient.KindTimeout:
		status = http.StatusGatewayTimeout
	case apiclient.KindCanceled:
		// The caller is gone; the status is for the access log only.
		status = 499
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("backend call failed", "operation", apiErr.Operation, "kind", apiErr.Kind, "status", apiErr.Status, "attempts", apiErr.Attempts)
	}
	writeJSON(w, status, body)
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// decodeJSONIn is decodeJSON with offset-less timestamps read in loc.
func decodeJSONIn(r *http.Request, dst any, loc *time.Location) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	apiclient.Localize(dst, loc)
	return nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return n, nil
}

// queryTime accepts RFC 3339 or a YYYY-MM-DD day interpreted in loc.
func queryTime(r *http.Request, name string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(views.DateLayout, raw, loc)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &t, nil
}

func queryRange(r *http.Request, loc *time.Location) (apiclient.DateRange, error) {
	from, err := queryTime(r, "date_from", loc)
	if err != nil {
		return apiclient.DateRange{}, err
	}
	to, err := queryTime(r, "date_to", loc)
	if err != nil {
		return apiclient.DateRange{}, err
	}
	return apiclient.DateRange{From: from, To: to}, nil
}
