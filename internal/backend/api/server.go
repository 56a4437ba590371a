package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/ops"
	"media-organizer/internal/backend/providers"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// Version reported by the health endpoint.
const Version = "0.1.0"

// Deps wires the backend services into the HTTP layer.
type Deps struct {
	Store       store.Store
	Scanner     *media.Scanner
	ScanOptions media.ScanOptions
	Planner     *ops.Planner
	Executor    *ops.Executor
	GoogleBooks *providers.GoogleBooksClient
	Audnexus    *providers.AudnexusClient
	Gemini      *providers.GeminiClient
	Metrics     *metrics.Metrics
	Log         *logging.Logger

	// Defaults reported by /api/settings when the database has none.
	FolderTemplate  string
	FileTemplate    string
	EnableLLM       bool
	EnableProviders bool
	GeminiKeySet    bool
	BooksKeySet     bool
}

// Server is the backend HTTP API.
type Server struct {
	router *mux.Router
	log    *logging.Logger
}

// NewServer assembles the router. Routes with literal segments are
// registered before parameterized ones.
func NewServer(deps Deps) *Server {
	r := mux.NewRouter()

	if deps.Log != nil {
		r.Use(RequestLogger(deps.Log))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	NewHealthHandler(deps.Store).RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api").Subrouter()
	NewSettingsHandler(deps).RegisterRoutes(apiRouter)
	NewScanHandler(deps).RegisterRoutes(apiRouter)
	NewFilesHandler(deps.Store, deps.Log).RegisterRoutes(apiRouter)
	NewPlansHandler(deps).RegisterRoutes(apiRouter)
	NewSearchHandler(deps).RegisterRoutes(apiRouter)

	return &Server{router: r, log: deps.Log}
}

// Router returns the assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
