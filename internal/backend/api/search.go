package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/providers"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// Confidence assigned per match source. A direct ASIN hit outranks any
// text search.
const (
	confidenceASIN        = 0.95
	confidenceAudnexus    = 0.75
	confidenceGoogleBooks = 0.7
)

// SearchHandler queries metadata providers and applies chosen results
// to the catalog.
type SearchHandler struct {
	store       store.Store
	googleBooks *providers.GoogleBooksClient
	audnexus    *providers.AudnexusClient
	gemini      *providers.GeminiClient
	metrics     *metrics.Metrics
	log         *logging.Logger
}

// NewSearchHandler creates the search handler.
func NewSearchHandler(deps Deps) *SearchHandler {
	return &SearchHandler{
		store:       deps.Store,
		googleBooks: deps.GoogleBooks,
		audnexus:    deps.Audnexus,
		gemini:      deps.Gemini,
		metrics:     deps.Metrics,
		log:         deps.Log,
	}
}

// RegisterRoutes registers the search endpoints.
func (h *SearchHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/search/llm-parse", h.LLMParse).Methods("POST")
	r.HandleFunc("/search/apply-group/{id}", h.ApplyToGroup).Methods("POST")
	r.HandleFunc("/search/apply/{id}", h.ApplyToFile).Methods("POST")
	r.HandleFunc("/search", h.Search).Methods("GET")
}

// Search queries the providers. An ASIN lookup takes priority; then
// Google Books and Audnexus text searches, merged and sorted by
// confidence.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("query")
	title := q.Get("title")
	author := q.Get("author")
	asin := q.Get("asin")
	provider := q.Get("provider")

	queryStr := query
	if queryStr == "" {
		queryStr = strings.TrimSpace(title + " " + author)
	}
	if queryStr == "" && asin == "" {
		respondError(w, http.StatusBadRequest, "query, title/author, or asin is required")
		return
	}

	ctx := r.Context()
	var results []models.ProviderResult

	if asin != "" && h.audnexus != nil {
		h.countProvider("audnexus")
		book, err := h.audnexus.GetBook(ctx, asin, "")
		if err != nil {
			h.log.Warn("Audnexus ASIN lookup failed", map[string]interface{}{
				"asin": asin, "error": err.Error(),
			})
		} else if book != nil {
			match := book.ProviderResult()
			match.Confidence = confidenceASIN
			results = append(results, match)
		}
	}

	if (provider == "" || provider == "google_books") && h.googleBooks != nil {
		h.countProvider("google_books")
		var books []providers.BookResult
		var err error
		if title != "" || author != "" {
			searchTitle := title
			if searchTitle == "" {
				searchTitle = query
			}
			books, err = h.googleBooks.SearchByTitleAuthor(ctx, searchTitle, author, 5)
		} else {
			books, err = h.googleBooks.SearchBooks(ctx, query, 5)
		}
		if err != nil {
			h.log.Warn("Google Books search failed", map[string]interface{}{"error": err.Error()})
		}
		for _, book := range books {
			match := book.ProviderResult()
			match.Confidence = confidenceGoogleBooks
			results = append(results, match)
		}
	}

	if (provider == "" || provider == "audnexus") && asin == "" && queryStr != "" && h.audnexus != nil {
		h.countProvider("audnexus")
		books, err := h.audnexus.SearchBooks(ctx, queryStr, "", 10)
		if err != nil {
			h.log.Warn("Audnexus search failed", map[string]interface{}{"error": err.Error()})
		}
		for _, book := range books {
			if containsID(results, book.ASIN) {
				continue
			}
			match := book.ProviderResult()
			match.Confidence = confidenceAudnexus
			results = append(results, match)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   queryStr,
		"results": results,
	})
}

// LLMParse asks the model to turn a messy filename into structured
// metadata. A file_id resolves filename, folder, and hash from the
// catalog; raw filename/folder/hash fields work for uncataloged files.
func (h *SearchHandler) LLMParse(w http.ResponseWriter, r *http.Request) {
	if h.gemini == nil {
		respondError(w, http.StatusServiceUnavailable, "LLM suggestions are not enabled")
		return
	}

	var req struct {
		FileID   string `json:"file_id"`
		Filename string `json:"filename"`
		Folder   string `json:"folder"`
		FileHash string `json:"file_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.FileID != "" {
		file, err := h.store.GetMediaFile(req.FileID)
		if err != nil {
			respondError(w, http.StatusNotFound, "File not found")
			return
		}
		req.Filename = filepath.Base(file.FilePath)
		req.Folder = filepath.Base(filepath.Dir(file.FilePath))
		req.FileHash = file.FileHash
	}
	if req.Filename == "" {
		respondError(w, http.StatusBadRequest, "file_id or filename is required")
		return
	}

	h.countProvider("gemini")
	parsed, err := h.gemini.ParseFilename(r.Context(), req.Filename, req.Folder, req.FileHash)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if parsed == nil {
		respondError(w, http.StatusNotFound, "No metadata could be extracted")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"filename": req.Filename,
		"parsed":   parsed,
	})
}

func containsID(results []models.ProviderResult, id string) bool {
	for _, r := range results {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (h *SearchHandler) countProvider(name string) {
	if h.metrics != nil {
		h.metrics.ProviderRequests.WithLabelValues(name).Inc()
	}
}

// ApplyToFile writes a chosen provider match into a file's final
// metadata and marks it reviewed.
func (h *SearchHandler) ApplyToFile(w http.ResponseWriter, r *http.Request) {
	var result models.ProviderResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fileID := mux.Vars(r)["id"]
	file, err := h.store.GetMediaFile(fileID)
	if err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	file.FinalTitle = result.Title
	file.FinalAuthor = result.Author
	file.FinalNarrator = result.Narrator
	file.FinalSeries = result.Series
	file.FinalSeriesIndex = result.SeriesIndex
	file.FinalYear = result.Year
	file.ProviderMatchSource = result.Provider
	file.ProviderMatchID = result.ID
	file.Confidence = result.Confidence
	file.Status = models.FileStatusReviewed

	if err := h.store.UpdateMediaFile(file); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Metadata applied", "file_id": fileID})
}

// ApplyToGroup writes a chosen provider match into a group's final
// metadata and marks it reviewed.
func (h *SearchHandler) ApplyToGroup(w http.ResponseWriter, r *http.Request) {
	var result models.ProviderResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	groupID := mux.Vars(r)["id"]
	group, err := h.store.GetGroup(groupID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Group not found")
		return
	}

	group.FinalTitle = result.Title
	group.FinalAuthor = result.Author
	group.FinalNarrator = result.Narrator
	group.FinalSeries = result.Series
	group.FinalSeriesIndex = result.SeriesIndex
	group.FinalYear = result.Year
	group.ProviderMatchSource = result.Provider
	group.ProviderMatchID = result.ID
	group.Confidence = result.Confidence
	group.Status = models.FileStatusReviewed

	if err := h.store.UpdateGroup(group); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Metadata applied", "group_id": groupID})
}
