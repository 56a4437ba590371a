package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteFileUpsertPreservesReviewState(t *testing.T) {
	s := newTestStore(t)

	file := &models.MediaFile{
		ID:             uuid.NewString(),
		FilePath:       "/library/Book.m4b",
		FileSize:       1024,
		Type:           models.MediaTypeAudiobook,
		ExtractedTitle: "Book",
		Status:         models.FileStatusPending,
		Confidence:     0.5,
	}
	require.NoError(t, s.UpsertMediaFile(file))

	// Approve, then re-scan the same path
	require.NoError(t, s.SetFileStatus(file.ID, models.FileStatusApproved))

	rescan := &models.MediaFile{
		ID:             uuid.NewString(),
		FilePath:       "/library/Book.m4b",
		FileSize:       2048,
		Type:           models.MediaTypeAudiobook,
		ExtractedTitle: "Book (fixed)",
		Status:         models.FileStatusPending,
		Confidence:     0.7,
	}
	require.NoError(t, s.UpsertMediaFile(rescan))

	got, err := s.GetMediaFileByPath("/library/Book.m4b")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID, "upsert must not create a second row")
	assert.Equal(t, models.FileStatusApproved, got.Status, "review state survives re-scan")
	assert.Equal(t, "Book (fixed)", got.ExtractedTitle)
	assert.Equal(t, int64(2048), got.FileSize)
}

func TestSQLiteListMediaFilesFilters(t *testing.T) {
	s := newTestStore(t)

	for i, tc := range []struct {
		path   string
		mtype  models.MediaType
		status models.FileStatus
		conf   float64
	}{
		{"/lib/a.m4b", models.MediaTypeAudiobook, models.FileStatusPending, 0.9},
		{"/lib/b.epub", models.MediaTypeEbook, models.FileStatusApproved, 0.4},
		{"/lib/c.cbz", models.MediaTypeComic, models.FileStatusPending, 0.2},
	} {
		require.NoError(t, s.UpsertMediaFile(&models.MediaFile{
			ID:         uuid.NewString(),
			FilePath:   tc.path,
			Type:       tc.mtype,
			Status:     tc.status,
			Confidence: tc.conf,
			FileSize:   int64(i + 1),
		}))
	}

	page, err := s.ListMediaFiles(FileFilter{MediaType: models.MediaTypeAudiobook})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/lib/a.m4b", page.Items[0].FilePath)

	page, err = s.ListMediaFiles(FileFilter{Status: models.FileStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = s.ListMediaFiles(FileFilter{MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "/lib/a.m4b", page.Items[0].FilePath)
}

func TestSQLitePlanLifecycle(t *testing.T) {
	s := newTestStore(t)

	plan := &models.Plan{
		ID:     uuid.NewString(),
		Name:   "organize batch",
		Status: models.PlanStatusReady,
		Operations: []*models.PlannedOperation{
			{
				ID:             uuid.NewString(),
				Type:           models.OperationMove,
				SourcePath:     "/lib/a.m4b",
				TargetPath:     "/out/Author/a.m4b",
				ExecutionOrder: 0,
				Status:         models.OperationStatusPending,
			},
			{
				ID:             uuid.NewString(),
				Type:           models.OperationRename,
				SourcePath:     "/lib/b.m4b",
				TargetPath:     "/lib/b2.m4b",
				ExecutionOrder: 1,
				Status:         models.OperationStatusPending,
			},
		},
	}
	require.NoError(t, s.CreatePlan(plan))

	got, err := s.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ItemCount)
	require.Len(t, got.Operations, 2)
	assert.Equal(t, "/lib/a.m4b", got.Operations[0].SourcePath, "operations come back in execution order")

	require.NoError(t, s.UpdateOperationStatus(plan.Operations[0].ID, models.OperationStatusCompleted, ""))
	require.NoError(t, s.UpdatePlanStatus(plan.ID, models.PlanStatusCompleted, "", 2))

	got, err = s.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, got.Status)
	assert.NotNil(t, got.AppliedAt)
	assert.Equal(t, models.OperationStatusCompleted, got.Operations[0].Status)
	assert.NotNil(t, got.Operations[0].ExecutedAt)

	require.NoError(t, s.DeletePlan(plan.ID))
	_, err = s.GetPlan(plan.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestSQLiteProviderCacheExpiry(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCachedResponse("googlebooks", "title:dune")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.PutCachedResponse("googlebooks", "title:dune", []byte(`{"ok":true}`), time.Hour))
	data, err := s.GetCachedResponse("googlebooks", "title:dune")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	// Expired entries behave like misses
	require.NoError(t, s.PutCachedResponse("googlebooks", "title:old", []byte(`{}`), -time.Minute))
	_, err = s.GetCachedResponse("googlebooks", "title:old")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSQLiteSettings(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetSetting("output_root")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting("output_root", "/mnt/library"))
	require.NoError(t, s.SetSetting("output_root", "/mnt/library2"))

	v, err = s.GetSetting("output_root")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/library2", v)

	all, err := s.AllSettings()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"output_root": "/mnt/library2"}, all)
}
