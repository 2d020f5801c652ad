package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindNetwork  Kind = "NETWORK"
	KindTimeout  Kind = "TIMEOUT"
	KindHTTP4xx  Kind = "HTTP_4XX"
	KindHTTP5xx  Kind = "HTTP_5XX"
	KindCanceled Kind = "CANCELED"
	KindDecode   Kind = "DECODE"
)

const (
	CodeTimeout = "TIMEOUT_ERROR"
	CodeNetwork = "NETWORK_ERROR"
)

// Error is the single failure shape surfaced by Client. Message is always
// non-empty and safe to show to an operator.
type Error struct {
	Kind      Kind            `json:"kind"`
	Status    int             `json:"status"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	Operation string          `json:"operation,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
	Err       error           `json:"-"`
}

func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("apiclient: %s: %s (kind=%s status=%d)", e.Operation, e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("apiclient: %s (kind=%s status=%d)", e.Message, e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed unmodified.
// Anything carrying a 4xx status is final, as are caller cancellation
// and a success body that could not be decoded.
func (e *Error) Retryable() bool {
	if e == nil || e.Kind == KindCanceled || e.Kind == KindDecode {
		return false
	}
	return e.Status < 400 || e.Status > 499
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a backend 409.
func IsConflict(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == http.StatusConflict
}

// IsEmailTaken reports the backend's duplicate-email rejection.
func IsEmailTaken(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindHTTP4xx && strings.Contains(strings.ToLower(apiErr.Message), "email already exists")
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Status:  0,
		Code:    CodeNetwork,
		Message: "Network error - please check your connection",
		Err:     err,
	}
}

func timeoutError(err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Status:  http.StatusRequestTimeout,
		Code:    CodeTimeout,
		Message: "Request timeout",
		Err:     err,
	}
}

func canceledError(err error) *Error {
	return &Error{
		Kind:    KindCanceled,
		Status:  0,
		Message: "Request canceled",
		Err:     err,
	}
}

// errorBody covers the spellings the backend has used over time:
// {"error":{"message","code","details"}}, {"detail": ...}, {"message": ...},
// {"error": "..."}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

type structuredError struct {
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

// decodeHTTPError normalizes a non-2xx response into an *Error.
func decodeHTTPError(status int, body []byte) *Error {
	kind := KindHTTP5xx
	if status >= 400 && status <= 499 {
		kind = KindHTTP4xx
	}
	apiErr := &Error{Kind: kind, Status: status}

	message, code, details := parseErrorBody(body)
	if message == "" {
		message = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	apiErr.Message = message
	apiErr.Code = code
	apiErr.Details = details
	return apiErr
}

func parseErrorBody(body []byte) (message, code string, details json.RawMessage) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", "", nil
	}

	var plain string
	if err := json.Unmarshal(trimmed, &plain); err == nil {
		return strings.TrimSpace(plain), "", nil
	}

	var parsed errorBody
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return "", "", nil
	}
	code = parsed.Code

	if len(parsed.Error) > 0 {
		var structured structuredError
		if err := json.Unmarshal(parsed.Error, &structured); err == nil && structured.Message != "" {
			if structured.Code != "" {
				code = structured.Code
			}
			return structured.Message, code, nonNull(structured.Details)
		}
	}
	if msg := detailMessage(parsed.Detail); msg != "" {
		return msg, code, detailPayload(parsed.Detail)
	}
	if strings.TrimSpace(parsed.Message) != "" {
		return strings.TrimSpace(parsed.Message), code, nil
	}
	if len(parsed.Error) > 0 {
		var s string
		if err := json.Unmarshal(parsed.Error, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), code, nil
		}
	}
	return "", code, nil
}

// detailMessage handles both a plain detail string and the list of
// {loc,msg,type} entries request-validation failures produce.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if item.Msg == "" {
			continue
		}
		if field := lastLoc(item.Loc); field != "" {
			msgs = append(msgs, field+": "+item.Msg)
			continue
		}
		msgs = append(msgs, item.Msg)
	}
	return strings.Join(msgs, "; ")
}

func detailPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) > 0 && raw[0] == '[' {
		return raw
	}
	return nil
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
