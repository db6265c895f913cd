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

// ApprovalRepository stores per-approver decision records and carries the
// requests through the workflow phases.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// FindByRequestAndApprover returns the approver's record on a request, or
// sql.ErrNoRows when the request has not reached them.
func (r *ApprovalRepository) FindByRequestAndApprover(ctx context.Context, requestID, approverID string) (*models.ApprovalRecord, error) {
	const query = `SELECT id, request_id, approver_id, status, comment, decided_at, updated_at
        FROM clearance_approvals WHERE request_id = $1 AND approver_id = $2 LIMIT 1`
	var record models.ApprovalRecord
	if err := r.db.GetContext(ctx, &record, query, requestID, approverID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find approval: %w", err)
	}
	return &record, nil
}

// ListDetailsByRequest returns every approval record on a request together
// with the approver's workflow role.
func (r *ApprovalRepository) ListDetailsByRequest(ctx context.Context, requestID string) ([]models.ApprovalDetail, error) {
	const query = `SELECT ca.id, ca.request_id, ca.approver_id, ca.status, ca.comment, ca.decided_at, ca.updated_at,
        sr.general_role, sr.specific_role
        FROM clearance_approvals ca
        JOIN staff_roles sr ON sr.user_id = ca.approver_id
        WHERE ca.request_id = $1
        ORDER BY ca.updated_at`
	var details []models.ApprovalDetail
	if err := r.db.SelectContext(ctx, &details, query, requestID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return details, nil
}

// UpdateDecisionLocked records the approver's verdict, unless the decision is
// already locked: an approval record in one of the given later-phase roles, or
// an issued certificate for the request (the terminal lock once the registrar
// has approved). The lock checks and the update share one transaction so a
// concurrent phase advancement cannot slip between them. It reports whether
// the decision was locked.
func (r *ApprovalRepository) UpdateDecisionLocked(ctx context.Context, id, requestID string, laterRoles []models.GeneralRole, status models.ApprovalStatus, comment string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if len(laterRoles) > 0 {
		query, args, err := sqlx.In(`SELECT 1 FROM clearance_approvals ca
            JOIN staff_roles sr ON sr.user_id = ca.approver_id
            WHERE ca.request_id = ? AND sr.general_role IN (?) LIMIT 1`, requestID, laterRoles)
		if err != nil {
			return false, fmt.Errorf("build later phase query: %w", err)
		}
		var exists int
		switch err := tx.GetContext(ctx, &exists, tx.Rebind(query), args...); err {
		case sql.ErrNoRows:
		case nil:
			return true, nil
		default:
			return false, fmt.Errorf("check later phase: %w", err)
		}
	}

	var issued int
	switch err := tx.GetContext(ctx, &issued, `SELECT 1 FROM certificates WHERE request_id = $1 LIMIT 1`, requestID); err {
	case sql.ErrNoRows:
	case nil:
		return true, nil
	default:
		return false, fmt.Errorf("check certificate lock: %w", err)
	}

	const update = `UPDATE clearance_approvals
        SET status = $2, comment = $3, decided_at = $4, updated_at = $4
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, status, comment, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("update decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit decision tx: %w", err)
	}
	return false, nil
}

// CountApprovedInRoles counts the given roles holding an approved record on
// the request. Counting distinct roles rather than rows keeps a user who was
// reassigned across two phase-one duties from satisfying both with a single
// approval.
func (r *ApprovalRepository) CountApprovedInRoles(ctx context.Context, requestID string, roles []models.GeneralRole) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals ca
        JOIN staff_roles sr ON sr.user_id = ca.approver_id
        WHERE ca.request_id = ? AND ca.status = 'approved' AND sr.general_role IN (?)`, requestID, roles)
	if err != nil {
		return 0, fmt.Errorf("build approved count query: %w", err)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return count, nil
}

// AdvancePhase seeds the next approver's pending record once the prerequisite
// roles are fully approved. The count and the conditional insert run in one
// transaction, and the unique (request_id, approver_id) pair makes the insert
// a no-op when a concurrent decision already advanced the request. It returns
// whether this call created the record.
func (r *ApprovalRepository) AdvancePhase(ctx context.Context, requestID string, requiredRoles []models.GeneralRole, requiredCount int, nextApproverID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	countQuery, args, err := sqlx.In(`SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals ca
        JOIN staff_roles sr ON sr.user_id = ca.approver_id
        WHERE ca.request_id = ? AND ca.status = 'approved' AND sr.general_role IN (?)`, requestID, requiredRoles)
	if err != nil {
		return false, fmt.Errorf("build advance count query: %w", err)
	}
	var approved int
	if err := tx.GetContext(ctx, &approved, tx.Rebind(countQuery), args...); err != nil {
		return false, fmt.Errorf("count phase approvals: %w", err)
	}
	if approved < requiredCount {
		return false, nil
	}

	const insertQuery = `INSERT INTO clearance_approvals (id, request_id, approver_id, status, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (request_id, approver_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, insertQuery, uuid.NewString(), requestID, nextApproverID, models.StatusPending, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("seed next phase: %w", err)
	}
	created, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seed next phase result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit advance tx: %w", err)
	}
	return created > 0, nil
}

// ListQueue returns the approver's requests in the given decision state, with
// the student context staff need to decide.
func (r *ApprovalRepository) ListQueue(ctx context.Context, approverID string, status models.ApprovalStatus) ([]models.PendingRequestItem, error) {
	const query = `SELECT cr.id AS request_id, s.id AS student_id, u.first_name, u.last_name, u.email,
        s.id_no, s.room_no, d.name AS department_name, s.study_level, s.year_of_study,
        ct.name AS clearance_type, ca.status, ca.comment, cr.created_at
        FROM clearance_approvals ca
        JOIN clearance_requests cr ON cr.id = ca.request_id
        JOIN clearance_types ct ON ct.id = cr.clearance_type_id
        JOIN students s ON s.id = cr.student_id
        JOIN users u ON u.id = s.user_id
        JOIN departments d ON d.id = s.department_id
        WHERE ca.approver_id = $1 AND ca.status = $2
        ORDER BY cr.created_at`
	var items []models.PendingRequestItem
	if err := r.db.SelectContext(ctx, &items, query, approverID, status); err != nil {
		return nil, fmt.Errorf("list approver queue: %w", err)
	}
	return items, nil
}
