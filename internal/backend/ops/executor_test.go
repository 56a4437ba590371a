package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// seedPlan stores an approved file plus a ready plan moving it to target.
func seedPlan(t *testing.T, st store.Store, source, target string) (*models.Plan, *models.MediaFile) {
	t.Helper()

	hash, err := media.HashFile(source)
	require.NoError(t, err)

	file := &models.MediaFile{
		ID:       uuid.NewString(),
		FilePath: source,
		FileHash: hash,
		Type:     models.MediaTypeAudiobook,
		Status:   models.FileStatusApproved,
	}
	require.NoError(t, st.UpsertMediaFile(file))

	plan := &models.Plan{
		ID:     uuid.NewString(),
		Status: models.PlanStatusReady,
		Operations: []*models.PlannedOperation{
			{
				ID:          uuid.NewString(),
				MediaFileID: file.ID,
				Type:        models.OperationMove,
				SourcePath:  source,
				TargetPath:  target,
				FileHash:    hash,
				Status:      models.OperationStatusPending,
			},
		},
	}
	require.NoError(t, st.CreatePlan(plan))
	return plan, file
}

func TestExecutePlanMovesFileAndSettlesStatuses(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "in", "book.m4b"), "audiobook payload")
	target := filepath.Join(root, "out", "Author", "book.m4b")

	plan, file := seedPlan(t, st, source, target)

	results, err := exec.ExecutePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	assert.NoFileExists(t, source)
	assert.FileExists(t, target)

	saved, err := st.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, saved.Status)
	assert.Equal(t, 1, saved.CompletedCount)
	assert.Equal(t, models.OperationStatusCompleted, saved.Operations[0].Status)

	gotFile, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApplied, gotFile.Status)

	audit, err := st.ListAudit(plan.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "success", audit[0].Result)
}

func TestExecutePlanFailsOnHashMismatch(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "book.m4b"), "original")
	target := filepath.Join(root, "out", "book.m4b")

	plan, file := seedPlan(t, st, source, target)

	// Source changes after planning, hash check must fail
	writeFile(t, source, "tampered")

	results, err := exec.ExecutePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, "hash mismatch")

	assert.FileExists(t, source, "source must be untouched on failure")
	assert.NoFileExists(t, target)

	saved, err := st.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusFailed, saved.Status)

	gotFile, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApproved, gotFile.Status, "file keeps its status when nothing moved")
}

func TestExecutePlanRefusesExistingTarget(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "book.m4b"), "payload")
	target := writeFile(t, filepath.Join(root, "out", "book.m4b"), "already here")

	plan, _ := seedPlan(t, st, source, target)

	results, err := exec.ExecutePlan(plan.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, "already exists")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data), "existing target is never overwritten")
}

func TestSafeCopyDeleteVerifiesTarget(t *testing.T) {
	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "src", "book.m4b"), "payload")
	target := filepath.Join(root, "dst", "book.m4b")

	hash, err := media.HashFile(source)
	require.NoError(t, err)

	require.NoError(t, safeCopyDelete(source, target, hash))
	assert.NoFileExists(t, source)
	assert.FileExists(t, target)

	gotHash, err := media.HashFile(target)
	require.NoError(t, err)
	assert.Equal(t, hash, gotHash)
}

func TestRollbackPlanRestoresFiles(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "in", "book.m4b"), "payload")
	target := filepath.Join(root, "out", "book.m4b")

	plan, file := seedPlan(t, st, source, target)

	_, err := exec.ExecutePlan(plan.ID)
	require.NoError(t, err)
	require.NoFileExists(t, source)

	result, err := exec.RollbackPlan(plan.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.OperationsRolledBack)

	assert.FileExists(t, source)
	assert.NoFileExists(t, target)

	saved, err := st.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusRolledBack, saved.Status)
	assert.Equal(t, models.OperationStatusRolledBack, saved.Operations[0].Status)

	gotFile, err := st.GetMediaFile(file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusApproved, gotFile.Status)
}

func TestRollbackPlanDetectsOccupiedOriginal(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	root := t.TempDir()
	source := writeFile(t, filepath.Join(root, "in", "book.m4b"), "payload")
	target := filepath.Join(root, "out", "book.m4b")

	plan, _ := seedPlan(t, st, source, target)
	_, err := exec.ExecutePlan(plan.ID)
	require.NoError(t, err)

	// Something new occupies the original location
	writeFile(t, source, "intruder")

	result, err := exec.RollbackPlan(plan.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.OperationsFailed)
	require.Len(t, result.Conflicts, 1)
	assert.Contains(t, result.Conflicts[0], "occupied")
}

func TestRollbackRejectsUnappliedPlan(t *testing.T) {
	st := store.NewMemoryStore()
	exec := NewExecutor(st, logging.New(logging.ERROR, false))

	plan := &models.Plan{ID: uuid.NewString(), Status: models.PlanStatusReady}
	require.NoError(t, st.CreatePlan(plan))

	result, err := exec.RollbackPlan(plan.ID)
	require.NoError(t, err)
	assert.Contains(t, result.ErrorMessage, "cannot be rolled back")
}
