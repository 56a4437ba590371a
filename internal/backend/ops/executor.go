package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// ExecutionResult is the outcome of one executed operation.
type ExecutionResult struct {
	OperationID  string `json:"operation_id"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Executor applies plans to the filesystem with hash verification.
type Executor struct {
	store store.Store
	log   *logging.Logger
}

// NewExecutor creates an executor over the given store.
func NewExecutor(st store.Store, log *logging.Logger) *Executor {
	return &Executor{store: st, log: log}
}

// verifyFile checks existence and, when a hash is known, content integrity.
func verifyFile(path, expectedHash string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("path is not a file: %s", path)
	}
	if expectedHash != "" {
		actual, err := media.HashFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		if actual != expectedHash {
			return fmt.Errorf("hash mismatch: expected %.16s..., got %.16s...", expectedHash, actual)
		}
	}
	return nil
}

// safeMove renames a file within a volume. The rename is atomic; an
// existing target fails the operation rather than being overwritten.
func safeMove(sourcePath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("target already exists: %s", targetPath)
	}
	if err := os.Rename(sourcePath, targetPath); err != nil {
		return fmt.Errorf("move failed: %w", err)
	}
	return nil
}

// safeCopyDelete copies across volumes, verifies the copy's hash, and only
// then removes the original. A bad copy is deleted and the source kept.
func safeCopyDelete(sourcePath, targetPath, expectedHash string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("copy-delete failed: %w", err)
	}
	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("target already exists: %s", targetPath)
	}

	if err := copyFile(sourcePath, targetPath); err != nil {
		os.Remove(targetPath)
		return fmt.Errorf("copy-delete failed: %w", err)
	}

	if expectedHash != "" {
		targetHash, err := media.HashFile(targetPath)
		if err != nil || targetHash != expectedHash {
			os.Remove(targetPath)
			return fmt.Errorf("copy verification failed: hash mismatch")
		}
	}

	if err := os.Remove(sourcePath); err != nil {
		return fmt.Errorf("copy-delete failed: %w", err)
	}
	return nil
}

// copyFile copies contents and preserves mode and modification time.
func copyFile(sourcePath, targetPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Chtimes(targetPath, info.ModTime(), info.ModTime())
}

// ExecuteOperation runs one operation and records the outcome in the
// audit log and operation row.
func (e *Executor) ExecuteOperation(op *models.PlannedOperation, planID string) ExecutionResult {
	if err := verifyFile(op.SourcePath, op.FileHash); err != nil {
		e.audit(planID, op.ID, "verify", op.SourcePath, "", "failed", err.Error())
		e.store.UpdateOperationStatus(op.ID, models.OperationStatusFailed, err.Error())
		return ExecutionResult{OperationID: op.ID, ErrorMessage: err.Error()}
	}

	var err error
	switch op.Type {
	case models.OperationMove, models.OperationRename:
		err = safeMove(op.SourcePath, op.TargetPath)
	case models.OperationCopyDelete:
		err = safeCopyDelete(op.SourcePath, op.TargetPath, op.FileHash)
	default:
		err = fmt.Errorf("unknown operation type: %s", op.Type)
	}

	if err != nil {
		e.audit(planID, op.ID, string(op.Type), op.SourcePath, op.TargetPath, "failed", err.Error())
		e.store.UpdateOperationStatus(op.ID, models.OperationStatusFailed, err.Error())
		return ExecutionResult{OperationID: op.ID, ErrorMessage: err.Error()}
	}

	e.audit(planID, op.ID, string(op.Type), op.SourcePath, op.TargetPath, "success", "")
	e.store.UpdateOperationStatus(op.ID, models.OperationStatusCompleted, "")
	return ExecutionResult{OperationID: op.ID, Success: true}
}

// ExecutePlan runs every pending operation of a plan in execution order,
// then settles plan, file, and group statuses.
func (e *Executor) ExecutePlan(planID string) ([]ExecutionResult, error) {
	if err := e.store.UpdatePlanStatus(planID, models.PlanStatusApplying, "", 0); err != nil {
		return nil, err
	}

	allOps, err := e.store.GetPlanOperations(planID)
	if err != nil {
		return nil, err
	}

	var results []ExecutionResult
	completed, failed := 0, 0

	for _, op := range allOps {
		if op.Status != models.OperationStatusPending {
			continue
		}
		result := e.ExecuteOperation(op, planID)
		results = append(results, result)
		if result.Success {
			completed++
		} else {
			failed++
		}
	}

	status := models.PlanStatusCompleted
	if failed > 0 {
		status = models.PlanStatusFailed
	}
	if err := e.store.UpdatePlanStatus(planID, status, "", completed); err != nil {
		return results, err
	}

	// Completed operations flip their files and groups to applied
	if err := e.settleStatuses(planID, models.OperationStatusCompleted, models.FileStatusApplied); err != nil {
		return results, err
	}

	e.log.Info("Plan executed", map[string]interface{}{
		"plan_id":   planID,
		"completed": completed,
		"failed":    failed,
	})
	return results, nil
}

// settleStatuses updates files and groups touched by operations that ended
// in the given state.
func (e *Executor) settleStatuses(planID string, opStatus models.OperationStatus, target models.FileStatus) error {
	ops, err := e.store.GetPlanOperations(planID)
	if err != nil {
		return err
	}

	seenGroups := make(map[string]bool)
	for _, op := range ops {
		if op.Status != opStatus {
			continue
		}
		if op.MediaFileID != "" {
			if err := e.store.SetFileStatus(op.MediaFileID, target); err != nil && err != store.ErrFileNotFound {
				return err
			}
		}
		if op.GroupID != "" && !seenGroups[op.GroupID] {
			seenGroups[op.GroupID] = true
			if err := e.store.SetGroupStatus(op.GroupID, target); err != nil && err != store.ErrGroupNotFound {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) audit(planID, operationID, action, sourcePath, targetPath, result, errMsg string) {
	entry := &models.AuditEntry{
		PlanID:       planID,
		OperationID:  operationID,
		Action:       action,
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		Result:       result,
		ErrorMessage: errMsg,
	}
	if err := e.store.AppendAudit(entry); err != nil {
		e.log.Error("Failed to write audit entry", map[string]interface{}{"error": err.Error()})
	}
}
