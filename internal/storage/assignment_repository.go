package storage

import (
	"context"
	"fmt"

	"github.com/door-access-manager/backend/internal/storage/models"
)

// AssignmentRepository provides data access for submission records.
type AssignmentRepository struct {
	BaseRepository
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new assignment record.
func (r *AssignmentRepository) Create(ctx context.Context, rec *models.AssignmentRecord) error {
	if rec.ID == "" {
		rec.ID = GenerateID()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = r.Now()
	}

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO assignment_records (
			id, workflow_id, subject_name, device_id, door_id, door_name,
			method, access_type, role, status, error_message, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.WorkflowID, rec.SubjectName, rec.DeviceID, rec.DoorID, rec.DoorName,
		rec.Method, rec.AccessType, rec.Role, rec.Status, rec.ErrorMessage, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assignment record: %w", err)
	}

	return nil
}

// List retrieves the most recent records, newest first.
func (r *AssignmentRepository) List(ctx context.Context, limit int) ([]models.AssignmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, `
		SELECT id, workflow_id, subject_name, device_id, door_id, door_name,
		       method, access_type, role, status, error_message, submitted_at
		FROM assignment_records
		ORDER BY submitted_at DESC
		LIMIT ?
	`, limit)
}

// ListByWorkflow retrieves the records of one workflow in submission order.
func (r *AssignmentRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]models.AssignmentRecord, error) {
	return r.query(ctx, `
		SELECT id, workflow_id, subject_name, device_id, door_id, door_name,
		       method, access_type, role, status, error_message, submitted_at
		FROM assignment_records
		WHERE workflow_id = ?
		ORDER BY submitted_at
	`, workflowID)
}

// CountByStatus returns the number of records with the given status.
func (r *AssignmentRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM assignment_records WHERE status = ?", status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting assignment records: %w", err)
	}
	return n, nil
}

func (r *AssignmentRepository) query(ctx context.Context, query string, args ...any) ([]models.AssignmentRecord, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying assignment records: %w", err)
	}
	defer rows.Close()

	var records []models.AssignmentRecord
	for rows.Next() {
		var rec models.AssignmentRecord
		if err := rows.Scan(
			&rec.ID, &rec.WorkflowID, &rec.SubjectName, &rec.DeviceID, &rec.DoorID, &rec.DoorName,
			&rec.Method, &rec.AccessType, &rec.Role, &rec.Status, &rec.ErrorMessage, &rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning assignment record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
