package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/store"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a health handler over the given store.
func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// RegisterRoutes registers the health endpoint.
func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// Health returns ok as long as the process is up; the database field
// carries its own status so a broken catalog is still visible.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := h.store.HealthCheck(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  Version,
		"database": dbStatus,
	})
}
