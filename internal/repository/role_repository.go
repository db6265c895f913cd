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

// RoleRepository is the backing store of the role directory: which staff
// principal holds which workflow duty.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// ListUnscoped returns every binding for a role with no specific scope. The
// directory layer enforces singular cardinality; the repository reports what
// is configured.
func (r *RoleRepository) ListUnscoped(ctx context.Context, role models.GeneralRole) ([]models.StaffRole, error) {
	const query = `SELECT id, user_id, general_role, specific_role, created_at
        FROM staff_roles WHERE general_role = $1 AND specific_role IS NULL`
	var roles []models.StaffRole
	if err := r.db.SelectContext(ctx, &roles, query, role); err != nil {
		return nil, fmt.Errorf("list unscoped role %s: %w", role, err)
	}
	return roles, nil
}

// ListScoped returns the bindings for a role narrowed to a scope key.
func (r *RoleRepository) ListScoped(ctx context.Context, role models.GeneralRole, scopeKey string) ([]models.StaffRole, error) {
	const query = `SELECT id, user_id, general_role, specific_role, created_at
        FROM staff_roles WHERE general_role = $1 AND specific_role = $2`
	var roles []models.StaffRole
	if err := r.db.SelectContext(ctx, &roles, query, role, scopeKey); err != nil {
		return nil, fmt.Errorf("list scoped role %s/%s: %w", role, scopeKey, err)
	}
	return roles, nil
}

// FindByUser returns the first workflow role bound to a user, mirroring the
// single-duty assumption of the approval flow.
func (r *RoleRepository) FindByUser(ctx context.Context, userID string) (*models.StaffRole, error) {
	const query = `SELECT id, user_id, general_role, specific_role, created_at
        FROM staff_roles WHERE user_id = $1 ORDER BY created_at LIMIT 1`
	var role models.StaffRole
	if err := r.db.GetContext(ctx, &role, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find role by user: %w", err)
	}
	return &role, nil
}

// Assign binds a user to a workflow role.
func (r *RoleRepository) Assign(ctx context.Context, role *models.StaffRole) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO staff_roles (id, user_id, general_role, specific_role, created_at)
        VALUES (:id, :user_id, :general_role, :specific_role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// RemoveByUser deletes every workflow role held by the user.
func (r *RoleRepository) RemoveByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM staff_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("remove roles: %w", err)
	}
	return nil
}

// ListAll returns every role binding with holder identity for administration.
func (r *RoleRepository) ListAll(ctx context.Context) ([]models.StaffRoleDetail, error) {
	const query = `SELECT sr.id, sr.user_id, sr.general_role, sr.specific_role, sr.created_at,
        u.email, u.first_name, u.last_name
        FROM staff_roles sr
        JOIN users u ON u.id = sr.user_id
        ORDER BY sr.general_role, sr.specific_role NULLS FIRST`
	var roles []models.StaffRoleDetail
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
