package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

type roleRepository interface {
	ListUnscoped(ctx context.Context, role models.GeneralRole) ([]models.StaffRole, error)
	ListScoped(ctx context.Context, role models.GeneralRole, scopeKey string) ([]models.StaffRole, error)
	FindByUser(ctx context.Context, userID string) (*models.StaffRole, error)
}

// RoleDirectory resolves which staff account is responsible for a workflow
// role on a given student's request.
type RoleDirectory struct {
	repo   roleRepository
	logger *zap.Logger
}

// NewRoleDirectory constructs a RoleDirectory.
func NewRoleDirectory(repo roleRepository, logger *zap.Logger) *RoleDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleDirectory{repo: repo, logger: logger}
}

// ResolveApprover returns the user ID of the approver for the role on the
// student's request. Scoped roles are narrowed by the student's department
// name or dormitory block number. An unscoped role must resolve to exactly
// one binding; zero or several is a deployment defect, not a caller error.
func (d *RoleDirectory) ResolveApprover(ctx context.Context, role models.GeneralRole, student *models.StudentDetail) (string, error) {
	var (
		bindings []models.StaffRole
		err      error
	)

	if role.Scoped() {
		scope, scopeErr := scopeKeyFor(role, student)
		if scopeErr != nil {
			return "", scopeErr
		}
		bindings, err = d.repo.ListScoped(ctx, role, scope)
	} else {
		bindings, err = d.repo.ListUnscoped(ctx, role)
	}
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve approver")
	}

	if len(bindings) != 1 {
		d.logger.Error("approver resolution failed",
			zap.String("role", string(role)),
			zap.String("student_id", student.ID),
			zap.Int("bindings", len(bindings)))
		return "", appErrors.Clone(appErrors.ErrApproverNotConfigured,
			fmt.Sprintf("role %s resolves to %d approvers", role, len(bindings)))
	}
	return bindings[0].UserID, nil
}

// ResolvePhaseOne resolves the full first-phase approver set for a student.
func (d *RoleDirectory) ResolvePhaseOne(ctx context.Context, student *models.StudentDetail) ([]string, error) {
	roles := models.PhaseOneRoles(student.StudyLevel)
	approvers := make([]string, 0, len(roles))
	for _, role := range roles {
		approverID, err := d.ResolveApprover(ctx, role, student)
		if err != nil {
			return nil, err
		}
		approvers = append(approvers, approverID)
	}
	return approvers, nil
}

// RoleOf returns the staff workflow role of the user, or ErrNoRole.
func (d *RoleDirectory) RoleOf(ctx context.Context, userID string) (*models.StaffRole, error) {
	role, err := d.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoRole, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff role")
	}
	return role, nil
}

func scopeKeyFor(role models.GeneralRole, student *models.StudentDetail) (string, error) {
	switch role {
	case models.RoleDepartmentHead:
		if student.DepartmentName == "" {
			return "", appErrors.Clone(appErrors.ErrApproverNotConfigured, "student has no department")
		}
		return student.DepartmentName, nil
	case models.RoleDormitory:
		if student.BlockNo == nil || *student.BlockNo == "" {
			return "", appErrors.Clone(appErrors.ErrApproverNotConfigured, "student has no dormitory block")
		}
		return *student.BlockNo, nil
	default:
		return "", appErrors.Clone(appErrors.ErrApproverNotConfigured, fmt.Sprintf("role %s is not scoped", role))
	}
}
