package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/wellness-dashboard/internal/status"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// StatusHandler exposes the system status poller.
type StatusHandler struct {
	monitor       *status.Monitor
	logger        *logging.Logger
	originAllowed func(origin string) bool
}

func NewStatusHandler(monitor *status.Monitor, logger *logging.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusHandler{monitor: monitor, logger: logger}
}

// WithOriginCheck admits stream connections from browser origins accepted
// by allowed. Pages served from the dashboard's own host are always
// admitted.
func (h *StatusHandler) WithOriginCheck(allowed func(origin string) bool) *StatusHandler {
	h.originAllowed = allowed
	return h
}

// StatusResponse wraps the latest snapshot with the in-progress flag.
type StatusResponse struct {
	Status   status.Snapshot `json:"status"`
	Checking bool            `json:"checking"`
}

// Get handles GET /api/status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   h.monitor.Current(r.Context()),
		Checking: h.monitor.Checking(),
	})
}

// Refresh handles POST /api/status/refresh with an immediate check.
func (h *StatusHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Refresh(r.Context())
	writeJSON(w, http.StatusOK, StatusResponse{Status: snap, Checking: h.monitor.Checking()})
}

// Stream handles GET /api/status/stream. The socket receives the current
// snapshot on connect and every published snapshot after that. Sending
// the text "refresh" triggers a manual check unless one is running.
func (h *StatusHandler) Stream(w http.ResponseWriter, r *http.Request) {
	websocket.Server{Handler: h.stream, Handshake: h.checkOrigin}.ServeHTTP(w, r)
}

// checkOrigin admits clients that send no Origin (not browsers), same-host
// pages and allowlisted origins.
func (h *StatusHandler) checkOrigin(config *websocket.Config, r *http.Request) error {
	raw := strings.TrimSpace(r.Header.Get("Origin"))
	if raw == "" {
		return nil
	}
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return fmt.Errorf("status stream: bad origin %q: %w", raw, err)
	}
	config.Origin = origin
	if origin != nil && origin.Host == r.Host {
		return nil
	}
	if h.originAllowed != nil && h.originAllowed(raw) {
		return nil
	}
	h.logger.Warn("status stream origin rejected", "origin", raw)
	return fmt.Errorf("status stream: origin %q not allowed", raw)
}

func (h *StatusHandler) stream(conn *websocket.Conn) {
	defer conn.Close()
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	updates, unsubscribe := h.monitor.Subscribe()
	defer unsubscribe()

	var refreshing atomic.Bool
	go func() {
		defer cancel()
		for {
			var msg string
			if err := websocket.Message.Receive(conn, &msg); err != nil {
				return
			}
			if !strings.EqualFold(strings.TrimSpace(msg), "refresh") {
				continue
			}
			if h.monitor.Checking() || !refreshing.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer refreshing.Store(false)
				h.monitor.Refresh(ctx)
			}()
		}
	}()

	if err := websocket.JSON.Send(conn, h.monitor.Current(ctx)); err != nil {
		h.logger.Debug("status stream closed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, snap); err != nil {
				h.logger.Debug("status stream closed", "error", err)
				return
			}
		}
	}
}
