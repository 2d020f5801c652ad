package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports that the dashboard process is serving. It never
// calls the backend; backend health lives under /api/status.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
