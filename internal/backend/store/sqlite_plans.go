package store

import (
	"database/sql"
	"time"

	"media-organizer/internal/backend/models"
)

// CreatePlan inserts a plan and all of its operations in one transaction.
func (s *SQLiteStore) CreatePlan(plan *models.Plan) error {
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	plan.ItemCount = len(plan.Operations)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO plans (id, name, description, status, item_count, completed_count, error_message, created_at, applied_at, rolled_back_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, plan.ID, plan.Name, plan.Description, plan.Status, plan.ItemCount,
		plan.CompletedCount, plan.ErrorMessage, plan.CreatedAt, plan.AppliedAt, plan.RolledBackAt)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO planned_operations (id, plan_id, media_file_id, group_id, operation_type,
			source_path, target_path, file_hash, execution_order, status, executed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, op := range plan.Operations {
		op.PlanID = plan.ID
		_, err := stmt.Exec(op.ID, op.PlanID, op.MediaFileID, op.GroupID, op.Type,
			op.SourcePath, op.TargetPath, op.FileHash, op.ExecutionOrder,
			op.Status, op.ExecutedAt, op.ErrorMessage)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetPlan(id string) (*models.Plan, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, status, item_count, completed_count, error_message, created_at, applied_at, rolled_back_at
		FROM plans WHERE id = ?
	`, id)
	plan, err := scanPlanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	ops, err := s.GetPlanOperations(plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Operations = ops
	return plan, nil
}

func (s *SQLiteStore) ListPlans(limit int) ([]*models.Plan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, name, description, status, item_count, completed_count, error_message, created_at, applied_at, rolled_back_at
		FROM plans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]*models.Plan, 0)
	for rows.Next() {
		plan, err := scanPlanRow(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// UpdatePlanStatus sets the plan status and bookkeeping timestamps.
func (s *SQLiteStore) UpdatePlanStatus(id string, status models.PlanStatus, errorMsg string, completedCount int) error {
	now := time.Now().UTC()
	var appliedAt, rolledBackAt interface{}
	switch status {
	case models.PlanStatusCompleted, models.PlanStatusFailed:
		appliedAt = now
	case models.PlanStatusRolledBack:
		rolledBackAt = now
	}

	res, err := s.db.Exec(`
		UPDATE plans SET status = ?, error_message = ?, completed_count = ?,
			applied_at = COALESCE(?, applied_at),
			rolled_back_at = COALESCE(?, rolled_back_at)
		WHERE id = ?
	`, status, errorMsg, completedCount, appliedAt, rolledBackAt, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPlanNotFound)
}

func (s *SQLiteStore) DeletePlan(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM planned_operations WHERE plan_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetPlanOperations(planID string) ([]*models.PlannedOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, plan_id, media_file_id, group_id, operation_type, source_path, target_path,
			file_hash, execution_order, status, executed_at, error_message
		FROM planned_operations WHERE plan_id = ? ORDER BY execution_order
	`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops := make([]*models.PlannedOperation, 0)
	for rows.Next() {
		var op models.PlannedOperation
		var fileID, groupID, hash, errMsg sql.NullString
		var executed sql.NullTime
		err := rows.Scan(&op.ID, &op.PlanID, &fileID, &groupID, &op.Type,
			&op.SourcePath, &op.TargetPath, &hash, &op.ExecutionOrder,
			&op.Status, &executed, &errMsg)
		if err != nil {
			return nil, err
		}
		op.MediaFileID = fileID.String
		op.GroupID = groupID.String
		op.FileHash = hash.String
		op.ErrorMessage = errMsg.String
		if executed.Valid {
			op.ExecutedAt = &executed.Time
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (s *SQLiteStore) UpdateOperationStatus(id string, status models.OperationStatus, errorMsg string) error {
	var executedAt interface{}
	if status == models.OperationStatusCompleted || status == models.OperationStatusFailed {
		executedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		UPDATE planned_operations SET status = ?, error_message = ?,
			executed_at = COALESCE(?, executed_at)
		WHERE id = ?
	`, status, errorMsg, executedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrOperationNotFound)
}

func scanPlanRow(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	var name, desc, errMsg sql.NullString
	var applied, rolledBack sql.NullTime
	err := row.Scan(&p.ID, &name, &desc, &p.Status, &p.ItemCount, &p.CompletedCount,
		&errMsg, &p.CreatedAt, &applied, &rolledBack)
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	p.Description = desc.String
	p.ErrorMessage = errMsg.String
	if applied.Valid {
		p.AppliedAt = &applied.Time
	}
	if rolledBack.Valid {
		p.RolledBackAt = &rolledBack.Time
	}
	return &p, nil
}
