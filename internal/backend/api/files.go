package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// FilesHandler serves the catalog: media files, audiobook groups, and
// dashboard statistics.
type FilesHandler struct {
	store store.Store
	log   *logging.Logger
}

// NewFilesHandler creates the files handler.
func NewFilesHandler(st store.Store, log *logging.Logger) *FilesHandler {
	return &FilesHandler{store: st, log: log}
}

// RegisterRoutes registers the catalog endpoints. Literal segments
// (groups, stats, bulk-approve) come before {id}.
func (h *FilesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/files/groups/{id}/approve", h.ApproveGroup).Methods("POST")
	r.HandleFunc("/files/groups/{id}", h.GetGroup).Methods("GET")
	r.HandleFunc("/files/groups/{id}", h.UpdateGroup).Methods("PUT")
	r.HandleFunc("/files/groups", h.ListGroups).Methods("GET")
	r.HandleFunc("/files/stats", h.Stats).Methods("GET")
	r.HandleFunc("/files/bulk-approve", h.BulkApprove).Methods("POST")
	r.HandleFunc("/files/{id}/approve", h.ApproveFile).Methods("POST")
	r.HandleFunc("/files/{id}", h.GetFile).Methods("GET")
	r.HandleFunc("/files/{id}", h.UpdateFile).Methods("PUT")
	r.HandleFunc("/files", h.ListFiles).Methods("GET")
}

func parsePaging(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// ListFiles lists media files with filtering and pagination.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := parsePaging(r)

	filter := store.FileFilter{
		MediaType: models.MediaType(q.Get("media_type")),
		Status:    models.FileStatus(q.Get("status")),
		ScanID:    q.Get("scan_id"),
		GroupID:   q.Get("group_id"),
		Search:    q.Get("search"),
		Page:      page,
		PageSize:  pageSize,
	}
	if v := q.Get("ungrouped"); v != "" {
		filter.Ungrouped, _ = strconv.ParseBool(v)
	}
	if v := q.Get("min_confidence"); v != "" {
		filter.MinConfidence, _ = strconv.ParseFloat(v, 64)
	}

	result, err := h.store.ListMediaFiles(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListGroups lists audiobook groups with filtering and pagination.
func (h *FilesHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := parsePaging(r)

	result, err := h.store.ListGroups(store.GroupFilter{
		Status:   models.FileStatus(q.Get("status")),
		ScanID:   q.Get("scan_id"),
		Search:   q.Get("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Stats returns dashboard statistics.
func (h *FilesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetDashboardStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetFile returns a single file by ID.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.store.GetMediaFile(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	respondJSON(w, http.StatusOK, file)
}

// metadataUpdate carries the reviewer's corrections. Nil fields are
// left untouched.
type metadataUpdate struct {
	FinalTitle       *string            `json:"final_title"`
	FinalAuthor      *string            `json:"final_author"`
	FinalNarrator    *string            `json:"final_narrator"`
	FinalSeries      *string            `json:"final_series"`
	FinalSeriesIndex *float64           `json:"final_series_index"`
	FinalYear        *int               `json:"final_year"`
	Status           *models.FileStatus `json:"status"`
}

func (u metadataUpdate) applyToFile(file *models.MediaFile) {
	if u.FinalTitle != nil {
		file.FinalTitle = *u.FinalTitle
	}
	if u.FinalAuthor != nil {
		file.FinalAuthor = *u.FinalAuthor
	}
	if u.FinalNarrator != nil {
		file.FinalNarrator = *u.FinalNarrator
	}
	if u.FinalSeries != nil {
		file.FinalSeries = *u.FinalSeries
	}
	if u.FinalSeriesIndex != nil {
		file.FinalSeriesIndex = *u.FinalSeriesIndex
	}
	if u.FinalYear != nil {
		file.FinalYear = *u.FinalYear
	}
	if u.Status != nil {
		file.Status = *u.Status
	}
}

func (u metadataUpdate) applyToGroup(group *models.AudiobookGroup) {
	if u.FinalTitle != nil {
		group.FinalTitle = *u.FinalTitle
	}
	if u.FinalAuthor != nil {
		group.FinalAuthor = *u.FinalAuthor
	}
	if u.FinalNarrator != nil {
		group.FinalNarrator = *u.FinalNarrator
	}
	if u.FinalSeries != nil {
		group.FinalSeries = *u.FinalSeries
	}
	if u.FinalSeriesIndex != nil {
		group.FinalSeriesIndex = *u.FinalSeriesIndex
	}
	if u.FinalYear != nil {
		group.FinalYear = *u.FinalYear
	}
	if u.Status != nil {
		group.Status = *u.Status
	}
}

// UpdateFile applies partial metadata edits to a file.
func (h *FilesHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var req metadataUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	file, err := h.store.GetMediaFile(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	req.applyToFile(file)
	if err := h.store.UpdateMediaFile(file); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, file)
}

// ApproveFile marks a file approved for the next plan.
func (h *FilesHandler) ApproveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]

	if err := h.store.SetFileStatus(fileID, models.FileStatusApproved); err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	file, err := h.store.GetMediaFile(fileID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, file)
}

func (h *FilesHandler) groupWithFiles(groupID string) (*models.AudiobookGroup, error) {
	group, err := h.store.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	files, err := h.store.GetGroupFiles(groupID)
	if err != nil {
		return nil, err
	}
	group.Files = files
	return group, nil
}

// GetGroup returns an audiobook group with its files.
func (h *FilesHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupWithFiles(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Group not found")
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// UpdateGroup applies partial metadata edits to a group.
func (h *FilesHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req metadataUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	groupID := mux.Vars(r)["id"]
	group, err := h.store.GetGroup(groupID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Group not found")
		return
	}

	req.applyToGroup(group)
	if err := h.store.UpdateGroup(group); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.groupWithFiles(groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// ApproveGroup marks a group approved for the next plan.
func (h *FilesHandler) ApproveGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]

	if err := h.store.SetGroupStatus(groupID, models.FileStatusApproved); err != nil {
		respondError(w, http.StatusNotFound, "Group not found")
		return
	}
	group, err := h.groupWithFiles(groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, group)
}

type bulkApproveRequest struct {
	FileIDs  []string `json:"file_ids"`
	GroupIDs []string `json:"group_ids"`
}

// BulkApprove approves many files and groups at once.
func (h *FilesHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	filesApproved := 0
	if len(req.FileIDs) > 0 {
		n, err := h.store.BulkSetFileStatus(req.FileIDs, models.FileStatusApproved)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		filesApproved = n
	}

	groupsApproved := 0
	for _, groupID := range req.GroupIDs {
		if err := h.store.SetGroupStatus(groupID, models.FileStatusApproved); err != nil {
			continue
		}
		groupsApproved++
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"files_approved":  filesApproved,
		"groups_approved": groupsApproved,
	})
}
