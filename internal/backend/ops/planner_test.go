package ops

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

func testPlanner(t *testing.T) (*Planner, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewPlanner(st, logging.New(logging.ERROR, false)), st
}

func TestGenerateWarnsWithoutOutputRoot(t *testing.T) {
	planner, _ := testPlanner(t)

	build, err := planner.Generate(PlanRequest{IncludeAllApproved: true})
	require.NoError(t, err)

	assert.Empty(t, build.Plan.Operations)
	require.Len(t, build.Warnings, 1)
	assert.Contains(t, build.Warnings[0], "output root")
}

func TestGeneratePlansApprovedFilesAndGroups(t *testing.T) {
	planner, st := testPlanner(t)
	outputRoot := t.TempDir()
	require.NoError(t, st.SetSetting(SettingOutputRoot, outputRoot))

	// Approved standalone audiobook
	standalone := &models.MediaFile{
		ID:              uuid.NewString(),
		FilePath:        "/library/Frank Herbert - Dune.m4b",
		Type:            models.MediaTypeAudiobook,
		Status:          models.FileStatusApproved,
		ExtractedTitle:  "Dune",
		ExtractedAuthor: "Frank Herbert",
		ExtractedYear:   1965,
	}
	require.NoError(t, st.UpsertMediaFile(standalone))

	// Pending file must not be planned
	require.NoError(t, st.UpsertMediaFile(&models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: "/library/pending.m4b",
		Type:     models.MediaTypeAudiobook,
		Status:   models.FileStatusPending,
	}))

	// Approved two-part group
	group := &models.AudiobookGroup{
		ID:         uuid.NewString(),
		FolderPath: "/library/Leviathan Wakes",
		Title:      "Leviathan Wakes",
		Author:     "James Corey",
		Status:     models.FileStatusApproved,
		FileCount:  2,
	}
	require.NoError(t, st.UpsertGroup(group))
	for i, name := range []string{"01 - Part One.mp3", "02 - Part Two.mp3"} {
		require.NoError(t, st.UpsertMediaFile(&models.MediaFile{
			ID:          uuid.NewString(),
			FilePath:    "/library/Leviathan Wakes/" + name,
			Type:        models.MediaTypeAudiobook,
			Status:      models.FileStatusApproved,
			GroupID:     group.ID,
			TrackNumber: i + 1,
		}))
	}

	build, err := planner.Generate(PlanRequest{IncludeAllApproved: true})
	require.NoError(t, err)
	require.Len(t, build.Plan.Operations, 3)

	// Sequential execution order
	for i, op := range build.Plan.Operations {
		assert.Equal(t, i, op.ExecutionOrder)
		assert.Equal(t, models.OperationStatusPending, op.Status)
	}

	first := build.Plan.Operations[0]
	assert.Equal(t, standalone.ID, first.MediaFileID)
	assert.Empty(t, first.GroupID)
	assert.Contains(t, first.TargetPath, filepath.Join(outputRoot, "Audiobooks", "Herbert, Frank"))

	// Group operations carry the group ID and distinct targets
	targets := make(map[string]bool)
	for _, op := range build.Plan.Operations[1:] {
		assert.Equal(t, group.ID, op.GroupID)
		assert.False(t, targets[op.TargetPath], "targets must be unique")
		targets[op.TargetPath] = true
	}
}

func TestSaveMarksPlanReady(t *testing.T) {
	planner, st := testPlanner(t)
	require.NoError(t, st.SetSetting(SettingOutputRoot, t.TempDir()))

	plan := &models.Plan{
		ID: uuid.NewString(),
		Operations: []*models.PlannedOperation{
			{ID: uuid.NewString(), Type: models.OperationMove, SourcePath: "/a", TargetPath: "/b"},
		},
	}
	require.NoError(t, planner.Save(plan))

	saved, err := st.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusReady, saved.Status)
	assert.Equal(t, models.OperationStatusPending, saved.Operations[0].Status)
}

func TestDetermineOperationType(t *testing.T) {
	assert.Equal(t, models.OperationRename, determineOperationType("/lib/a.m4b", "/lib/b.m4b"))
	assert.Equal(t, models.OperationMove, determineOperationType("/lib/a.m4b", "/out/deep/a.m4b"))
}
