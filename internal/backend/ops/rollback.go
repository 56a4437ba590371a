package ops

import (
	"fmt"
	"strings"

	"media-organizer/internal/backend/media"
	"media-organizer/internal/backend/models"
)

// RollbackResult summarizes a plan rollback.
type RollbackResult struct {
	PlanID               string   `json:"plan_id"`
	Success              bool     `json:"success"`
	OperationsRolledBack int      `json:"operations_rolled_back"`
	OperationsFailed     int      `json:"operations_failed"`
	Conflicts            []string `json:"conflicts,omitempty"`
	ErrorMessage         string   `json:"error_message,omitempty"`
}

// rollbackOperation reverses one completed operation: the original target
// becomes the source and the file moves back to where it came from.
func (e *Executor) rollbackOperation(op *models.PlannedOperation, planID string) ExecutionResult {
	rollbackSource := op.TargetPath
	rollbackTarget := op.SourcePath

	if !pathExists(rollbackSource) {
		errMsg := fmt.Sprintf("cannot rollback: file not found at %s", rollbackSource)
		e.audit(planID, op.ID, "rollback", rollbackSource, rollbackTarget, "failed", errMsg)
		e.store.UpdateOperationStatus(op.ID, models.OperationStatusFailed, errMsg)
		return ExecutionResult{OperationID: op.ID, ErrorMessage: errMsg}
	}
	if pathExists(rollbackTarget) {
		errMsg := fmt.Sprintf("cannot rollback: original location occupied at %s", rollbackTarget)
		e.audit(planID, op.ID, "rollback", rollbackSource, rollbackTarget, "failed", errMsg)
		e.store.UpdateOperationStatus(op.ID, models.OperationStatusFailed, errMsg)
		return ExecutionResult{OperationID: op.ID, ErrorMessage: errMsg}
	}

	var err error
	switch op.Type {
	case models.OperationMove, models.OperationRename:
		err = safeMove(rollbackSource, rollbackTarget)
	case models.OperationCopyDelete:
		// Verify against the file as it exists now, then copy back
		currentHash, hashErr := media.HashFile(rollbackSource)
		if hashErr != nil {
			err = hashErr
		} else {
			err = safeCopyDelete(rollbackSource, rollbackTarget, currentHash)
		}
	default:
		err = fmt.Errorf("unknown operation type: %s", op.Type)
	}

	if err != nil {
		e.audit(planID, op.ID, "rollback", rollbackSource, rollbackTarget, "failed", err.Error())
		e.store.UpdateOperationStatus(op.ID, models.OperationStatusFailed, err.Error())
		return ExecutionResult{OperationID: op.ID, ErrorMessage: err.Error()}
	}

	e.audit(planID, op.ID, "rollback", rollbackSource, rollbackTarget, "success", "")
	e.store.UpdateOperationStatus(op.ID, models.OperationStatusRolledBack, "")
	return ExecutionResult{OperationID: op.ID, Success: true}
}

// RollbackPlan reverses a plan's completed operations in reverse execution
// order. Conflicts are recorded but do not stop the remaining rollbacks.
func (e *Executor) RollbackPlan(planID string) (*RollbackResult, error) {
	plan, err := e.store.GetPlan(planID)
	if err != nil {
		return &RollbackResult{PlanID: planID, ErrorMessage: "Plan not found"}, err
	}

	if plan.Status != models.PlanStatusCompleted && plan.Status != models.PlanStatusFailed {
		return &RollbackResult{
			PlanID:       planID,
			ErrorMessage: fmt.Sprintf("Plan cannot be rolled back (status: %s)", plan.Status),
		}, nil
	}

	result := &RollbackResult{PlanID: planID}

	// Reverse execution order
	for i := len(plan.Operations) - 1; i >= 0; i-- {
		op := plan.Operations[i]
		if op.Status != models.OperationStatusCompleted {
			continue
		}

		opResult := e.rollbackOperation(op, planID)
		if opResult.Success {
			result.OperationsRolledBack++
		} else {
			result.OperationsFailed++
			if strings.Contains(opResult.ErrorMessage, "occupied") {
				result.Conflicts = append(result.Conflicts, opResult.ErrorMessage)
			}
		}
	}

	if err := e.store.UpdatePlanStatus(planID, models.PlanStatusRolledBack, "", plan.CompletedCount); err != nil {
		return result, err
	}

	// Rolled-back operations restore their files and groups to approved
	if err := e.settleStatuses(planID, models.OperationStatusRolledBack, models.FileStatusApproved); err != nil {
		return result, err
	}

	result.Success = result.OperationsFailed == 0
	e.log.Info("Plan rolled back", map[string]interface{}{
		"plan_id":     planID,
		"rolled_back": result.OperationsRolledBack,
		"failed":      result.OperationsFailed,
	})
	return result, nil
}
