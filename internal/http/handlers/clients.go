package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
	"github.com/wolfman30/wellness-dashboard/internal/clients"
	"github.com/wolfman30/wellness-dashboard/internal/views"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

// ClientsHandler serves the client management screen.
type ClientsHandler struct {
	store    *clients.Store
	pageSize int
	logger   *logging.Logger
}

func NewClientsHandler(store *clients.Store, pageSize int, logger *logging.Logger) *ClientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if pageSize <= 0 {
		pageSize = views.DefaultPageSize
	}
	return &ClientsHandler{store: store, pageSize: pageSize, logger: logger}
}

// ClientListResponse is one page of the filtered client collection.
type ClientListResponse struct {
	views.Page[apiclient.Client]
	Search   string          `json:"search"`
	Status   string          `json:"status"`
	Counts   map[string]int  `json:"counts"`
	InFlight map[string]bool `json:"in_flight"`
}

// List handles GET /api/clients.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	state, err := views.ParseState(r.URL.Query(), h.pageSize, nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.store.Loaded() {
		if err := h.store.Load(r.Context()); err != nil {
			h.logger.Warn("client collection unavailable", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, ClientListResponse{
		Page:     h.store.View(state),
		Search:   state.Search,
		Status:   state.Status,
		Counts:   h.store.Counts(),
		InFlight: h.store.InFlight(),
	})
}

// Reload handles POST /api/clients/reload.
func (h *ClientsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Load(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": h.store.Len()})
}

func (h *ClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Client
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in apiclient.Client
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	updated, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Appointments handles GET /api/clients/{id}/appointments.
func (h *ClientsHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Appointments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *ClientsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Analytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Overview handles GET /api/clients/analytics.
func (h *ClientsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Overview(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV streams the backend's CSV export as a download.
func (h *ClientsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportCSV(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}
