package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// ScanHandler starts folder scans and reports their progress. Active
// scans are tracked in memory; finished ones live in the store.
type ScanHandler struct {
	store    store.Store
	scanner  *media.Scanner
	baseOpts media.ScanOptions
	metrics  *metrics.Metrics
	log      *logging.Logger

	mu     sync.RWMutex
	active map[string]media.Progress
}

// NewScanHandler creates the scan handler.
func NewScanHandler(deps Deps) *ScanHandler {
	return &ScanHandler{
		store:    deps.Store,
		scanner:  deps.Scanner,
		baseOpts: deps.ScanOptions,
		metrics:  deps.Metrics,
		log:      deps.Log,
		active:   make(map[string]media.Progress),
	}
}

// RegisterRoutes registers the scan endpoints.
func (h *ScanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/scan/start", h.Start).Methods("POST")
	r.HandleFunc("/scan/status/{id}", h.Status).Methods("GET")
	r.HandleFunc("/scan", h.List).Methods("GET")
	r.HandleFunc("/scan/{id}", h.Delete).Methods("DELETE")
}

type scanRequest struct {
	RootPaths         []string `json:"root_paths"`
	ExclusionPatterns []string `json:"exclusion_patterns"`
}

// Start validates the request and launches a background scan.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.RootPaths) == 0 {
		respondError(w, http.StatusBadRequest, "root_paths is required")
		return
	}

	for _, rootPath := range req.RootPaths {
		info, err := os.Stat(rootPath)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Path does not exist: %s", rootPath))
			return
		}
		if !info.IsDir() {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Path is not a directory: %s", rootPath))
			return
		}
	}

	// Single root for now; the scanner takes one tree at a time
	rootPath := req.RootPaths[0]
	scan := &models.Scan{
		ID:       uuid.NewString(),
		RootPath: rootPath,
		Status:   models.ScanStatusPending,
	}
	if err := h.store.CreateScan(scan); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.ScansStarted.Inc()
	}
	go h.runScan(*scan, req.ExclusionPatterns)

	respondJSON(w, http.StatusAccepted, scan)
}

// runScan executes the scan and persists its results. The scan record
// is copied before every store write so readers never share memory with
// this goroutine.
func (h *ScanHandler) runScan(scan models.Scan, exclusions []string) {
	defer func() {
		h.mu.Lock()
		delete(h.active, scan.ID)
		h.mu.Unlock()
	}()

	now := time.Now().UTC()
	scan.Status = models.ScanStatusRunning
	scan.StartedAt = &now
	running := scan
	if err := h.store.UpdateScan(&running); err != nil {
		h.log.Error("Failed to mark scan running", map[string]interface{}{
			"scan_id": scan.ID, "error": err.Error(),
		})
		return
	}

	opts := h.baseOpts
	opts.ExclusionPatterns = exclusions

	result := h.scanner.Scan(context.Background(), scan.RootPath, scan.ID, opts, func(p media.Progress) {
		h.mu.Lock()
		h.active[scan.ID] = p
		h.mu.Unlock()
	})

	for _, file := range result.Files {
		if err := h.store.UpsertMediaFile(file); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("save %s: %v", file.FilePath, err))
			continue
		}
		if h.metrics != nil {
			h.metrics.FilesCataloged.Inc()
		}
	}
	for _, group := range result.Groups {
		if err := h.store.UpsertGroup(group); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("save group %s: %v", group.FolderPath, err))
			continue
		}
		if h.metrics != nil {
			h.metrics.GroupsCataloged.Inc()
		}
	}

	completed := time.Now().UTC()
	scan.CompletedAt = &completed
	scan.FilesFound = len(result.Files)
	scan.GroupsCreated = len(result.Groups)
	if len(result.Errors) > 0 {
		scan.Status = models.ScanStatusFailed
		scan.ErrorMessage = strings.Join(result.Errors, "; ")
	} else {
		scan.Status = models.ScanStatusCompleted
	}
	final := scan
	if err := h.store.UpdateScan(&final); err != nil {
		h.log.Error("Failed to finalize scan", map[string]interface{}{
			"scan_id": scan.ID, "error": err.Error(),
		})
		return
	}

	if h.metrics != nil {
		h.metrics.ScansCompleted.WithLabelValues(string(scan.Status)).Inc()
	}
	h.log.Info("Scan finished", map[string]interface{}{
		"scan_id": scan.ID,
		"status":  string(scan.Status),
		"files":   scan.FilesFound,
		"groups":  scan.GroupsCreated,
	})
}

// Status reports an in-flight scan from memory, otherwise the stored row.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["id"]

	h.mu.RLock()
	progress, running := h.active[scanID]
	h.mu.RUnlock()
	if running {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"id":             scanID,
			"root_path":      progress.RootPath,
			"status":         string(models.ScanStatusRunning),
			"files_found":    progress.FilesFound,
			"groups_created": progress.GroupsCreated,
			"current_folder": progress.CurrentFolder,
		})
		return
	}

	scan, err := h.store.GetScan(scanID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Scan not found")
		return
	}
	respondJSON(w, http.StatusOK, scan)
}

// List returns recent scans, newest first.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	scans, err := h.store.ListScans(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(scans),
		"items": scans,
	})
}

// Delete removes a scan and everything it discovered.
func (h *ScanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["id"]

	if err := h.store.DeleteScan(scanID); err != nil {
		if err == store.ErrScanNotFound {
			respondError(w, http.StatusNotFound, "Scan not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Scan deleted", "id": scanID})
}
