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

const studentDetailColumns = `s.id, s.user_id, s.id_no, s.department_id, s.block_id, s.study_level, s.year_of_study, s.room_no, s.created_at,
        u.first_name, u.last_name, u.email, d.name AS department_name, b.block_no`

const studentDetailJoins = `FROM students s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN departments d ON d.id = s.department_id
        LEFT JOIN blocks b ON b.id = s.block_id`

// StudentRepository handles persistence of student profiles and the
// department/block lookup tables that scope approvers.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUserID resolves the student profile behind a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.user_id = $1 LIMIT 1`, studentDetailColumns, studentDetailJoins)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// FindByID returns a student profile by its identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1 LIMIT 1`, studentDetailColumns, studentDetailJoins)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// ListOverview returns every student with a coarse derived clearance status
// for the admin roster.
func (r *StudentRepository) ListOverview(ctx context.Context) ([]models.StudentOverview, error) {
	const query = `SELECT s.id AS student_id, u.first_name, u.last_name, s.id_no, d.name AS department_name,
        s.year_of_study, s.study_level,
        (SELECT CASE
            WHEN COUNT(*) FILTER (WHERE ca.status = 'rejected') > 0 THEN 'rejected'
            WHEN COUNT(*) FILTER (WHERE ca.status = 'approved') >= CASE WHEN s.study_level = 'phd' THEN 6 ELSE 7 END THEN 'approved'
            ELSE 'pending'
        END
        FROM clearance_requests cr
        JOIN clearance_approvals ca ON ca.request_id = cr.id
        WHERE cr.student_id = s.id) AS clearance_status
        FROM students s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN departments d ON d.id = s.department_id
        ORDER BY u.first_name, u.last_name`
	var students []models.StudentOverview
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// BulkCreate inserts imported users and their student profiles in one
// transaction so a bad row aborts the whole import.
func (r *StudentRepository) BulkCreate(ctx context.Context, users []models.User, students []models.Student) error {
	if len(users) != len(students) {
		return fmt.Errorf("bulk create: %d users for %d students", len(users), len(students))
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, active, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :first_name, :last_name, :phone, :role, :active, :created_at, :updated_at)`
	const studentQuery = `INSERT INTO students (id, user_id, id_no, department_id, block_id, study_level, year_of_study, room_no, created_at)
        VALUES (:id, :user_id, :id_no, :department_id, :block_id, :study_level, :year_of_study, :room_no, :created_at)`

	now := time.Now().UTC()
	for i := range users {
		if users[i].ID == "" {
			users[i].ID = uuid.NewString()
		}
		users[i].CreatedAt = now
		users[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, userQuery, &users[i]); err != nil {
			return fmt.Errorf("import user %s: %w", users[i].Email, err)
		}

		if students[i].ID == "" {
			students[i].ID = uuid.NewString()
		}
		students[i].UserID = users[i].ID
		students[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, studentQuery, &students[i]); err != nil {
			return fmt.Errorf("import student %s: %w", students[i].IDNo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}

// ListDepartments returns all departments ordered by name.
func (r *StudentRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, `SELECT id, name FROM departments ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// ListBlocks returns all dormitory blocks ordered by block number.
func (r *StudentRepository) ListBlocks(ctx context.Context) ([]models.Block, error) {
	var blocks []models.Block
	if err := r.db.SelectContext(ctx, &blocks, `SELECT id, block_no FROM blocks ORDER BY block_no`); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return blocks, nil
}

// FindDepartmentByName resolves a department by its exact name.
func (r *StudentRepository) FindDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	var department models.Department
	if err := r.db.GetContext(ctx, &department, `SELECT id, name FROM departments WHERE name = $1 LIMIT 1`, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// FindBlockByNo resolves a block by its number.
func (r *StudentRepository) FindBlockByNo(ctx context.Context, blockNo string) (*models.Block, error) {
	var block models.Block
	if err := r.db.GetContext(ctx, &block, `SELECT id, block_no FROM blocks WHERE block_no = $1 LIMIT 1`, blockNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find block: %w", err)
	}
	return &block, nil
}
