package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/export"
)

type adminClearanceRepository interface {
	ListTypes(ctx context.Context) ([]models.ClearanceType, error)
	FindTypeByID(ctx context.Context, id string) (*models.ClearanceType, error)
	FindTypeByName(ctx context.Context, name string) (*models.ClearanceType, error)
	CreateType(ctx context.Context, clearanceType *models.ClearanceType) error
	FindScheduleByType(ctx context.Context, typeID string) (*models.ClearanceSchedule, error)
	UpsertSchedule(ctx context.Context, schedule *models.ClearanceSchedule) error
	ToggleSchedule(ctx context.Context, typeID string, active bool) error
	RecentRequests(ctx context.Context, limit int) ([]models.RequestOverview, error)
}

type adminRoleRepository interface {
	Assign(ctx context.Context, role *models.StaffRole) error
	RemoveByUser(ctx context.Context, userID string) error
	ListAll(ctx context.Context) ([]models.StaffRoleDetail, error)
}

type adminUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
}

// AdminService covers clearance type and schedule management, role bindings
// and the request overview.
type AdminService struct {
	clearance adminClearanceRepository
	roles     adminRoleRepository
	users     adminUserRepository
	exporter  *export.CSVExporter
	validator *validator.Validate
	audit     auditRecorder
	logger    *zap.Logger
}

// NewAdminService constructs an AdminService.
func NewAdminService(clearance adminClearanceRepository, roles adminRoleRepository, users adminUserRepository, exporter *export.CSVExporter, validate *validator.Validate, audit auditRecorder, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminService{
		clearance: clearance,
		roles:     roles,
		users:     users,
		exporter:  exporter,
		validator: validate,
		audit:     audit,
		logger:    logger,
	}
}

// Profile returns the administrator's own account record.
func (s *AdminService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ToggleUserStatus flips the account activation flag and returns the updated
// record. Admins cannot deactivate themselves.
func (s *AdminService) ToggleUserStatus(ctx context.Context, adminID, userID string) (*models.User, error) {
	if adminID == userID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot change the status of your own account")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	user.Active = !user.Active
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.SetActive(ctx, user.ID, user.Active, user.UpdatedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account status")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionUserStatus,
		Resource:   "user",
		ResourceID: &userID,
		NewValues:  []byte(fmt.Sprintf(`{"active":%t}`, user.Active)),
	}); err != nil {
		s.logger.Warn("failed to record status audit log", zap.Error(err))
	}
	return user, nil
}

// ListTypes returns all clearance types.
func (s *AdminService) ListTypes(ctx context.Context) ([]models.ClearanceType, error) {
	types, err := s.clearance.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	return types, nil
}

// CreateType adds a clearance type with a unique name.
func (s *AdminService) CreateType(ctx context.Context, adminID string, req models.CreateClearanceTypeRequest) (*models.ClearanceType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance type payload")
	}

	if _, err := s.clearance.FindTypeByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "clearance type already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check clearance type")
	}

	clearanceType := &models.ClearanceType{Name: req.Name}
	if err := s.clearance.CreateType(ctx, clearanceType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance type")
	}
	return clearanceType, nil
}

// SetSchedule creates or replaces the activation window for a type. One
// schedule row exists per type.
func (s *AdminService) SetSchedule(ctx context.Context, adminID string, req models.ScheduleRequest) (*models.ClearanceSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	if _, err := s.clearance.FindTypeByID(ctx, req.ClearanceTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}

	schedule := &models.ClearanceSchedule{
		ClearanceTypeID: req.ClearanceTypeID,
		IsActive:        req.IsActive,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		CreatedBy:       adminID,
	}
	if err := s.clearance.UpsertSchedule(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionSchedule,
		Resource:   "clearance_schedule",
		ResourceID: &schedule.ID,
		NewValues:  []byte(fmt.Sprintf(`{"type_id":%q,"active":%t}`, req.ClearanceTypeID, req.IsActive)),
	}); err != nil {
		s.logger.Warn("failed to record schedule audit log", zap.Error(err))
	}
	return schedule, nil
}

// ToggleSchedule flips the activation flag for a type's schedule.
func (s *AdminService) ToggleSchedule(ctx context.Context, adminID, typeID string, active bool) error {
	if _, err := s.clearance.FindScheduleByType(ctx, typeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	if err := s.clearance.ToggleSchedule(ctx, typeID, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle schedule")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionSchedule,
		Resource:   "clearance_schedule",
		ResourceID: &typeID,
		NewValues:  []byte(fmt.Sprintf(`{"active":%t}`, active)),
	}); err != nil {
		s.logger.Warn("failed to record toggle audit log", zap.Error(err))
	}
	return nil
}

// Schedule returns the window for a clearance type.
func (s *AdminService) Schedule(ctx context.Context, typeID string) (*models.ClearanceSchedule, error) {
	schedule, err := s.clearance.FindScheduleByType(ctx, typeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// RecentRequests returns the latest requests with approval counters.
func (s *AdminService) RecentRequests(ctx context.Context, limit int) ([]models.RequestOverview, error) {
	requests, err := s.clearance.RecentRequests(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent requests")
	}
	return requests, nil
}

// ExportRecentRequests renders the overview as a CSV download.
func (s *AdminService) ExportRecentRequests(ctx context.Context, limit int) ([]byte, error) {
	requests, err := s.RecentRequests(ctx, limit)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"request_id", "id_no", "first_name", "last_name", "clearance_type", "study_level", "approved", "rejected", "created_at"},
	}
	for _, request := range requests {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"request_id":     request.RequestID,
			"id_no":          request.IDNo,
			"first_name":     request.FirstName,
			"last_name":      request.LastName,
			"clearance_type": request.ClearanceType,
			"study_level":    string(request.StudyLevel),
			"approved":       strconv.Itoa(request.ApprovedCount),
			"rejected":       strconv.Itoa(request.RejectedCount),
			"created_at":     request.CreatedAt.Format(time.RFC3339),
		})
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}

// AssignRole binds a staff account to a workflow role. Scoped roles require
// a specific scope, unscoped roles must not carry one.
func (s *AdminService) AssignRole(ctx context.Context, adminID string, req models.AssignRoleRequest) (*models.StaffRole, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	role := models.GeneralRole(req.GeneralRole)
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.GeneralRole))
	}
	if role.Scoped() && (req.SpecificRole == nil || *req.SpecificRole == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %s requires a specific scope", role))
	}
	if !role.Scoped() && req.SpecificRole != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %s does not take a scope", role))
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleStaff {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only staff accounts can hold workflow roles")
	}

	binding := &models.StaffRole{
		UserID:       user.ID,
		GeneralRole:  role,
		SpecificRole: req.SpecificRole,
	}
	if err := s.roles.Assign(ctx, binding); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign role")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionRoleAssign,
		Resource:   "staff_role",
		ResourceID: &binding.ID,
		NewValues:  []byte(fmt.Sprintf(`{"user":%q,"role":%q}`, user.Email, role)),
	}); err != nil {
		s.logger.Warn("failed to record role audit log", zap.Error(err))
	}
	return binding, nil
}

// RemoveRole removes every workflow role binding of the user.
func (s *AdminService) RemoveRole(ctx context.Context, adminID, userID string) error {
	if err := s.roles.RemoveByUser(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove role")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionRoleRemove,
		Resource:   "staff_role",
		ResourceID: &userID,
	}); err != nil {
		s.logger.Warn("failed to record role removal audit log", zap.Error(err))
	}
	return nil
}

// ListRoles returns every workflow role binding with the holder's identity.
func (s *AdminService) ListRoles(ctx context.Context) ([]models.StaffRoleDetail, error) {
	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roles")
	}
	return roles, nil
}
