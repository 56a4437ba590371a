package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/ops"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// SettingsHandler exposes the persisted key/value settings plus the
// read-only key status coming from configuration.
type SettingsHandler struct {
	store store.Store
	log   *logging.Logger

	defaultFolderTemplate string
	defaultFileTemplate   string
	enableLLM             bool
	enableProviders       bool
	geminiKeySet          bool
	booksKeySet           bool
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(deps Deps) *SettingsHandler {
	return &SettingsHandler{
		store:                 deps.Store,
		log:                   deps.Log,
		defaultFolderTemplate: deps.FolderTemplate,
		defaultFileTemplate:   deps.FileTemplate,
		enableLLM:             deps.EnableLLM,
		enableProviders:       deps.EnableProviders,
		geminiKeySet:          deps.GeminiKeySet,
		booksKeySet:           deps.BooksKeySet,
	}
}

// RegisterRoutes registers the settings endpoints.
func (h *SettingsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/settings/keys", h.KeyStatus).Methods("GET")
	r.HandleFunc("/settings", h.Get).Methods("GET")
	r.HandleFunc("/settings", h.Update).Methods("PUT")
}

type settingsResponse struct {
	OutputRoot              string `json:"output_root"`
	AudiobookFolderTemplate string `json:"audiobook_folder_template"`
	AudiobookFileTemplate   string `json:"audiobook_file_template"`
	EnableLLM               bool   `json:"enable_llm"`
	EnableProviders         bool   `json:"enable_providers"`
	GeminiKeyLoaded         bool   `json:"gemini_key_loaded"`
	GoogleBooksKeyLoaded    bool   `json:"google_books_key_loaded"`
}

func (h *SettingsHandler) current() (*settingsResponse, error) {
	saved, err := h.store.AllSettings()
	if err != nil {
		return nil, err
	}

	resp := &settingsResponse{
		OutputRoot:              saved[ops.SettingOutputRoot],
		AudiobookFolderTemplate: h.defaultFolderTemplate,
		AudiobookFileTemplate:   h.defaultFileTemplate,
		EnableLLM:               h.enableLLM,
		EnableProviders:         h.enableProviders,
		GeminiKeyLoaded:         h.geminiKeySet,
		GoogleBooksKeyLoaded:    h.booksKeySet,
	}
	if v := saved[ops.SettingAudiobookFolderTemplate]; v != "" {
		resp.AudiobookFolderTemplate = v
	}
	if v := saved[ops.SettingAudiobookFileTemplate]; v != "" {
		resp.AudiobookFileTemplate = v
	}
	if v, ok := saved["enable_llm"]; ok {
		resp.EnableLLM, _ = strconv.ParseBool(v)
	}
	if v, ok := saved["enable_providers"]; ok {
		resp.EnableProviders, _ = strconv.ParseBool(v)
	}
	return resp, nil
}

// Get returns the effective settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.current()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type settingsUpdateRequest struct {
	OutputRoot              *string `json:"output_root"`
	AudiobookFolderTemplate *string `json:"audiobook_folder_template"`
	AudiobookFileTemplate   *string `json:"audiobook_file_template"`
	EnableLLM               *bool   `json:"enable_llm"`
	EnableProviders         *bool   `json:"enable_providers"`
}

// Update persists the provided settings and returns the new state.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updates := map[string]*string{
		ops.SettingOutputRoot:              req.OutputRoot,
		ops.SettingAudiobookFolderTemplate: req.AudiobookFolderTemplate,
		ops.SettingAudiobookFileTemplate:   req.AudiobookFileTemplate,
	}
	for key, value := range updates {
		if value == nil {
			continue
		}
		if err := h.store.SetSetting(key, *value); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.EnableLLM != nil {
		if err := h.store.SetSetting("enable_llm", strconv.FormatBool(*req.EnableLLM)); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.EnableProviders != nil {
		if err := h.store.SetSetting("enable_providers", strconv.FormatBool(*req.EnableProviders)); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	h.Get(w, r)
}

// KeyStatus reports which API keys are configured.
func (h *SettingsHandler) KeyStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"gemini": map[string]interface{}{
			"configured": h.geminiKeySet,
			"enabled":    h.enableLLM,
		},
		"google_books": map[string]interface{}{
			"configured": h.booksKeySet,
			"enabled":    h.enableProviders,
		},
		"audnexus": map[string]interface{}{
			"configured": true,
			"enabled":    h.enableProviders,
			"note":       "Public API, no key required",
		},
	})
}
