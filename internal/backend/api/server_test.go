package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/ops"
	"media-organizer/internal/backend/providers"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	log := logging.New(logging.ERROR, false)
	detector := media.NewDetector(
		[]string{".mp3", ".m4b", ".m4a", ".flac"},
		[]string{".epub", ".mobi", ".pdf"},
		[]string{".cbz", ".cbr"},
		"audiobook",
	)

	opts := media.DefaultScanOptions(0)
	opts.VerifyAudioDuration = false

	srv := NewServer(Deps{
		Store:           st,
		Scanner:         media.NewScanner(detector, nil, log),
		ScanOptions:     opts,
		Planner:         ops.NewPlanner(st, log),
		Executor:        ops.NewExecutor(st, log),
		Metrics:         metrics.New(),
		Log:             log,
		FolderTemplate:  ops.DefaultAudiobookFolderTemplate,
		FileTemplate:    ops.DefaultAudiobookFileTemplate,
		EnableProviders: true,
	})
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealthReportsDatabaseState(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	root := t.TempDir()
	rec := doJSON(t, srv, http.MethodPut, "/api/settings", map[string]interface{}{
		"output_root": root,
		"enable_llm":  false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, root, body["output_root"])
	assert.Equal(t, false, body["enable_llm"])
	assert.Equal(t, ops.DefaultAudiobookFolderTemplate, body["audiobook_folder_template"])
}

func TestScanStartRejectsMissingPath(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan/start", map[string]interface{}{
		"root_paths": []string{"/definitely/not/a/path"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not exist")
}

func TestScanStartCatalogsFiles(t *testing.T) {
	srv, st := newTestServer(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Frank Herbert - Dune.m4b"), []byte("x"), 0o644))

	rec := doJSON(t, srv, http.MethodPost, "/api/scan/start", map[string]interface{}{
		"root_paths": []string{root},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var scan models.Scan
	decode(t, rec, &scan)
	require.NotEmpty(t, scan.ID)

	// Background scan finishes quickly on a one-file tree
	require.Eventually(t, func() bool {
		saved, err := st.GetScan(scan.ID)
		return err == nil && saved.Status == models.ScanStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	saved, err := st.GetScan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.FilesFound)

	page, err := st.ListMediaFiles(store.FileFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Dune", page.Items[0].ExtractedTitle)
}

func TestFileReviewWorkflow(t *testing.T) {
	srv, st := newTestServer(t)

	file := &models.MediaFile{
		ID:             uuid.NewString(),
		FilePath:       "/library/book.m4b",
		Type:           models.MediaTypeAudiobook,
		Status:         models.FileStatusPending,
		ExtractedTitle: "book",
	}
	require.NoError(t, st.UpsertMediaFile(file))

	// Correct the title
	rec := doJSON(t, srv, http.MethodPut, "/api/files/"+file.ID, map[string]interface{}{
		"final_title":  "The Book",
		"final_author": "Someone",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.MediaFile
	decode(t, rec, &updated)
	assert.Equal(t, "The Book", updated.FinalTitle)
	assert.Equal(t, "book", updated.ExtractedTitle, "extracted metadata is untouched")

	// Approve it
	rec = doJSON(t, srv, http.MethodPost, "/api/files/"+file.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApproved, saved.Status)
}

func TestFilesListFilters(t *testing.T) {
	srv, st := newTestServer(t)

	for i, status := range []models.FileStatus{models.FileStatusPending, models.FileStatusApproved} {
		require.NoError(t, st.UpsertMediaFile(&models.MediaFile{
			ID:       uuid.NewString(),
			FilePath: fmt.Sprintf("/library/book-%d.m4b", i),
			Type:     models.MediaTypeAudiobook,
			Status:   status,
		}))
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/files?status=approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page store.Page[*models.MediaFile]
	decode(t, rec, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, models.FileStatusApproved, page.Items[0].Status)
}

func TestBulkApprove(t *testing.T) {
	srv, st := newTestServer(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		require.NoError(t, st.UpsertMediaFile(&models.MediaFile{
			ID:       id,
			FilePath: fmt.Sprintf("/library/bulk-%d.m4b", i),
			Type:     models.MediaTypeAudiobook,
			Status:   models.FileStatusPending,
		}))
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/files/bulk-approve", map[string]interface{}{
		"file_ids": ids,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	decode(t, rec, &body)
	assert.Equal(t, 3, body["files_approved"])
}

func TestGroupEndpointsIncludeFiles(t *testing.T) {
	srv, st := newTestServer(t)

	group := &models.AudiobookGroup{
		ID:         uuid.NewString(),
		FolderPath: "/library/Leviathan Wakes",
		Title:      "Leviathan Wakes",
		Status:     models.FileStatusPending,
		FileCount:  2,
	}
	require.NoError(t, st.UpsertGroup(group))
	for i := 1; i <= 2; i++ {
		require.NoError(t, st.UpsertMediaFile(&models.MediaFile{
			ID:          uuid.NewString(),
			FilePath:    fmt.Sprintf("/library/Leviathan Wakes/%02d.mp3", i),
			Type:        models.MediaTypeAudiobook,
			GroupID:     group.ID,
			TrackNumber: i,
			Status:      models.FileStatusPending,
		}))
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/files/groups/"+group.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.AudiobookGroup
	decode(t, rec, &got)
	require.Len(t, got.Files, 2)
	assert.Equal(t, 1, got.Files[0].TrackNumber)

	rec = doJSON(t, srv, http.MethodPost, "/api/files/groups/"+group.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := st.GetGroup(group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApproved, saved.Status)
}

func seedApprovedFile(t *testing.T, st store.Store, dir string) *models.MediaFile {
	t.Helper()

	source := filepath.Join(dir, "Frank Herbert - Dune.m4b")
	require.NoError(t, os.WriteFile(source, []byte("payload"), 0o644))

	file := &models.MediaFile{
		ID:              uuid.NewString(),
		FilePath:        source,
		Type:            models.MediaTypeAudiobook,
		Status:          models.FileStatusApproved,
		ExtractedTitle:  "Dune",
		ExtractedAuthor: "Frank Herbert",
	}
	require.NoError(t, st.UpsertMediaFile(file))
	return file
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)

	library := t.TempDir()
	output := t.TempDir()
	require.NoError(t, st.SetSetting(ops.SettingOutputRoot, output))
	file := seedApprovedFile(t, st, library)

	// Generate
	rec := doJSON(t, srv, http.MethodPost, "/api/plans/generate", map[string]interface{}{
		"include_all_approved": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var build ops.PlanBuild
	decode(t, rec, &build)
	require.NotNil(t, build.Plan)
	require.Len(t, build.Plan.Operations, 1)

	// Preview
	rec = doJSON(t, srv, http.MethodGet, "/api/plans/"+build.Plan.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "operation_types")

	// Apply runs in the background
	rec = doJSON(t, srv, http.MethodPost, "/api/plans/"+build.Plan.ID+"/apply", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		plan, err := st.GetPlan(build.Plan.ID)
		return err == nil && plan.Status == models.PlanStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	saved, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApplied, saved.Status)

	// Applied plans cannot be deleted
	rec = doJSON(t, srv, http.MethodDelete, "/api/plans/"+build.Plan.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Rollback restores the file
	rec = doJSON(t, srv, http.MethodPost, "/api/plans/"+build.Plan.ID+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, file.FilePath)
}

func TestGenerateRejectsEmptyPlan(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.SetSetting(ops.SettingOutputRoot, t.TempDir()))

	rec := doJSON(t, srv, http.MethodPost, "/api/plans/generate", map[string]interface{}{
		"include_all_approved": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No approved items")
}

func TestApplyRejectsNonReadyPlan(t *testing.T) {
	srv, st := newTestServer(t)

	plan := &models.Plan{ID: uuid.NewString(), Status: models.PlanStatusCompleted}
	require.NoError(t, st.CreatePlan(plan))

	rec := doJSON(t, srv, http.MethodPost, "/api/plans/"+plan.ID+"/apply", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot be applied")
}

func TestApplySearchResultToFile(t *testing.T) {
	srv, st := newTestServer(t)

	file := &models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: "/library/unknown.m4b",
		Type:     models.MediaTypeAudiobook,
		Status:   models.FileStatusPending,
	}
	require.NoError(t, st.UpsertMediaFile(file))

	rec := doJSON(t, srv, http.MethodPost, "/api/search/apply/"+file.ID, models.ProviderResult{
		Provider:   "audnexus",
		ID:         "B002V0QK4C",
		Title:      "The Way of Kings",
		Author:     "Brandon Sanderson",
		Narrator:   "Michael Kramer",
		Confidence: 0.95,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Way of Kings", saved.FinalTitle)
	assert.Equal(t, "audnexus", saved.ProviderMatchSource)
	assert.Equal(t, models.FileStatusReviewed, saved.Status)
}

func TestLLMParseUnavailableWithoutClient(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/search/llm-parse", map[string]interface{}{
		"filename": "b1_twok.m4b",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not enabled")
}

func TestLLMParseResolvesFileFromCatalog(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":
			"{\"title\": \"The Way of Kings\", \"author\": \"Brandon Sanderson\", \"confidence\": 0.9}"
		}]}}]}`))
	}))
	defer fake.Close()

	st := store.NewMemoryStore()
	log := logging.New(logging.ERROR, false)
	gemini := providers.NewGeminiClient("secret", providers.NewResponseCache(st), log)
	gemini.SetBaseURL(fake.URL)
	srv := NewServer(Deps{Store: st, Gemini: gemini, Log: log})

	file := &models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: "/library/Sanderson/b1_twok.m4b",
		FileHash: "hash-1",
		Type:     models.MediaTypeAudiobook,
		Status:   models.FileStatusPending,
	}
	require.NoError(t, st.UpsertMediaFile(file))

	rec := doJSON(t, srv, http.MethodPost, "/api/search/llm-parse", map[string]interface{}{
		"file_id": file.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Filename string                   `json:"filename"`
		Parsed   providers.ParsedMetadata `json:"parsed"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "b1_twok.m4b", body.Filename)
	assert.Equal(t, "The Way of Kings", body.Parsed.Title)
	assert.Equal(t, 0.9, body.Parsed.Confidence)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
