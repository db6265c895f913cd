package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-hub/clearance-api/internal/models"
)

// ClearanceRepository handles clearance types, their activation schedules and
// request rows.
type ClearanceRepository struct {
	db *sqlx.DB
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB) *ClearanceRepository {
	return &ClearanceRepository{db: db}
}

// ListTypes returns all clearance types.
func (r *ClearanceRepository) ListTypes(ctx context.Context) ([]models.ClearanceType, error) {
	var types []models.ClearanceType
	if err := r.db.SelectContext(ctx, &types, `SELECT id, name, created_at FROM clearance_types ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list clearance types: %w", err)
	}
	return types, nil
}

// FindTypeByID returns a clearance type by identifier.
func (r *ClearanceRepository) FindTypeByID(ctx context.Context, id string) (*models.ClearanceType, error) {
	var clearanceType models.ClearanceType
	if err := r.db.GetContext(ctx, &clearanceType, `SELECT id, name, created_at FROM clearance_types WHERE id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find clearance type: %w", err)
	}
	return &clearanceType, nil
}

// FindTypeByName returns a clearance type by its unique name.
func (r *ClearanceRepository) FindTypeByName(ctx context.Context, name string) (*models.ClearanceType, error) {
	var clearanceType models.ClearanceType
	if err := r.db.GetContext(ctx, &clearanceType, `SELECT id, name, created_at FROM clearance_types WHERE name = $1 LIMIT 1`, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find clearance type by name: %w", err)
	}
	return &clearanceType, nil
}

// CreateType inserts a new clearance type.
func (r *ClearanceRepository) CreateType(ctx context.Context, clearanceType *models.ClearanceType) error {
	if clearanceType.ID == "" {
		clearanceType.ID = uuid.NewString()
	}
	if clearanceType.CreatedAt.IsZero() {
		clearanceType.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO clearance_types (id, name, created_at) VALUES (:id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, clearanceType); err != nil {
		return fmt.Errorf("create clearance type: %w", err)
	}
	return nil
}

// FindScheduleByType returns the activation schedule for a clearance type.
func (r *ClearanceRepository) FindScheduleByType(ctx context.Context, typeID string) (*models.ClearanceSchedule, error) {
	const query = `SELECT id, clearance_type_id, is_active, start_time, end_time, created_by, updated_at
        FROM clearance_schedules WHERE clearance_type_id = $1 LIMIT 1`
	var schedule models.ClearanceSchedule
	if err := r.db.GetContext(ctx, &schedule, query, typeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &schedule, nil
}

// UpsertSchedule creates or replaces the single schedule row for a type.
func (r *ClearanceRepository) UpsertSchedule(ctx context.Context, schedule *models.ClearanceSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO clearance_schedules (id, clearance_type_id, is_active, start_time, end_time, created_by, updated_at)
        VALUES (:id, :clearance_type_id, :is_active, :start_time, :end_time, :created_by, :updated_at)
        ON CONFLICT (clearance_type_id) DO UPDATE
        SET is_active = EXCLUDED.is_active, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
            created_by = EXCLUDED.created_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// ToggleSchedule flips the activation flag for a type's schedule.
func (r *ClearanceRepository) ToggleSchedule(ctx context.Context, typeID string, active bool) error {
	const query = `UPDATE clearance_schedules SET is_active = $2, updated_at = $3 WHERE clearance_type_id = $1`
	if _, err := r.db.ExecContext(ctx, query, typeID, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("toggle schedule: %w", err)
	}
	return nil
}

// RequestExists reports whether a request already exists for the pair,
// regardless of its derived status.
func (r *ClearanceRepository) RequestExists(ctx context.Context, studentID, typeID string) (bool, error) {
	const query = `SELECT 1 FROM clearance_requests WHERE student_id = $1 AND clearance_type_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, typeID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check existing request: %w", err)
	}
	return true, nil
}

// FindRequestByID returns a request row.
func (r *ClearanceRepository) FindRequestByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	const query = `SELECT id, student_id, clearance_type_id, created_at FROM clearance_requests WHERE id = $1 LIMIT 1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &request, nil
}

// FindRequestLevel returns the study level of the student behind a request.
// The required-role set and prerequisite counts depend on it.
func (r *ClearanceRepository) FindRequestLevel(ctx context.Context, requestID string) (models.StudyLevel, error) {
	const query = `SELECT s.study_level FROM students s
        JOIN clearance_requests cr ON cr.student_id = s.id
        WHERE cr.id = $1`
	var level models.StudyLevel
	if err := r.db.GetContext(ctx, &level, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("find request study level: %w", err)
	}
	return level, nil
}

// CreateWithApprovals inserts the request and its complete first-phase
// approval set as one atomic unit. Any failure rolls the whole submission
// back so no partial request can exist.
func (r *ClearanceRepository) CreateWithApprovals(ctx context.Context, request *models.ClearanceRequest, approverIDs []string) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const requestQuery = `INSERT INTO clearance_requests (id, student_id, clearance_type_id, created_at)
        VALUES (:id, :student_id, :clearance_type_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, requestQuery, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	const approvalQuery = `INSERT INTO clearance_approvals (id, request_id, approver_id, status, updated_at)
        VALUES ($1, $2, $3, $4, $5)`
	now := time.Now().UTC()
	for _, approverID := range approverIDs {
		if _, err := tx.ExecContext(ctx, approvalQuery, uuid.NewString(), request.ID, approverID, models.StatusPending, now); err != nil {
			return fmt.Errorf("seed approval for %s: %w", approverID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit tx: %w", err)
	}
	return nil
}

// ListRequestsByStudent returns the student's requests with type names and
// certificate issuance timestamps.
func (r *ClearanceRepository) ListRequestsByStudent(ctx context.Context, studentID string) ([]models.StudentRequest, error) {
	const query = `SELECT cr.id, cr.student_id, cr.clearance_type_id, cr.created_at,
        ct.name AS clearance_type, s.study_level, c.created_at AS certificate_created_at
        FROM clearance_requests cr
        JOIN clearance_types ct ON ct.id = cr.clearance_type_id
        JOIN students s ON s.id = cr.student_id
        LEFT JOIN certificates c ON c.request_id = cr.id AND c.student_id = cr.student_id
        WHERE cr.student_id = $1
        ORDER BY cr.created_at DESC`
	var requests []models.StudentRequest
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requests: %w", err)
	}
	return requests, nil
}

// RecentRequests returns the latest requests with approval counters for the
// admin overview.
func (r *ClearanceRepository) RecentRequests(ctx context.Context, limit int) ([]models.RequestOverview, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT cr.id AS request_id, cr.student_id, s.id_no, u.first_name, u.last_name,
        ct.name AS clearance_type, s.study_level, cr.created_at,
        COUNT(ca.id) FILTER (WHERE ca.status = 'approved') AS approved_count,
        COUNT(ca.id) FILTER (WHERE ca.status = 'rejected') AS rejected_count
        FROM clearance_requests cr
        JOIN clearance_types ct ON ct.id = cr.clearance_type_id
        JOIN students s ON s.id = cr.student_id
        JOIN users u ON u.id = s.user_id
        LEFT JOIN clearance_approvals ca ON ca.request_id = cr.id
        GROUP BY cr.id, cr.student_id, s.id_no, u.first_name, u.last_name, ct.name, s.study_level, cr.created_at
        ORDER BY cr.created_at DESC LIMIT %d`, limit)
	var requests []models.RequestOverview
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list recent requests: %w", err)
	}
	return requests, nil
}
