package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

const statusCacheTTL = 5 * time.Minute

type workflowApprovalRepository interface {
	FindByRequestAndApprover(ctx context.Context, requestID, approverID string) (*models.ApprovalRecord, error)
	ListDetailsByRequest(ctx context.Context, requestID string) ([]models.ApprovalDetail, error)
	UpdateDecisionLocked(ctx context.Context, id, requestID string, laterRoles []models.GeneralRole, status models.ApprovalStatus, comment string) (bool, error)
	CountApprovedInRoles(ctx context.Context, requestID string, roles []models.GeneralRole) (int, error)
	AdvancePhase(ctx context.Context, requestID string, requiredRoles []models.GeneralRole, requiredCount int, nextApproverID string) (bool, error)
	ListQueue(ctx context.Context, approverID string, status models.ApprovalStatus) ([]models.PendingRequestItem, error)
}

type workflowClearanceRepository interface {
	FindRequestByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
}

type workflowStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type workflowUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type statusCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// WorkflowService records approval decisions and moves requests through the
// phases. Phase advancement is delegated to the repository's transactional
// conditional insert, so concurrent final decisions in a phase seed the next
// approver's record exactly once.
type WorkflowService struct {
	approvals workflowApprovalRepository
	clearance workflowClearanceRepository
	students  workflowStudentRepository
	users     workflowUserRepository
	directory *RoleDirectory
	cache     statusCache
	metrics   *MetricsService
	audit     auditRecorder
	logger    *zap.Logger

	// onFinalApproval runs after the registrar's approval completes a
	// request, typically to pre-render the certificate in the background.
	onFinalApproval func(requestID, studentID string)
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(approvals workflowApprovalRepository, clearance workflowClearanceRepository, students workflowStudentRepository, users workflowUserRepository, directory *RoleDirectory, cache statusCache, metrics *MetricsService, audit auditRecorder, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		approvals: approvals,
		clearance: clearance,
		students:  students,
		users:     users,
		directory: directory,
		cache:     cache,
		metrics:   metrics,
		audit:     audit,
		logger:    logger,
	}
}

// OnFinalApproval registers the hook invoked when a request becomes fully
// approved.
func (s *WorkflowService) OnFinalApproval(fn func(requestID, studentID string)) {
	s.onFinalApproval = fn
}

// RecordDecision applies the approver's verdict to their record on the
// request and, when the verdict completes a phase, seeds the next phase.
func (s *WorkflowService) RecordDecision(ctx context.Context, approverUserID, requestID string, verdict models.ApprovalStatus, comment string) (*models.RequestStatus, error) {
	if !verdict.Decided() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("verdict must be approved or rejected, got %q", verdict))
	}
	if verdict == models.StatusRejected && strings.TrimSpace(comment) == "" {
		return nil, appErrors.Clone(appErrors.ErrCommentRequired, "")
	}

	staffRole, err := s.directory.RoleOf(ctx, approverUserID)
	if err != nil {
		return nil, err
	}

	request, err := s.clearance.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	student, err := s.students.FindByID(ctx, request.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	record, err := s.approvals.FindByRequestAndApprover(ctx, requestID, approverUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyMissingRecord(ctx, requestID, staffRole.GeneralRole, student.StudyLevel)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval record")
	}

	// A decision is final once any later-phase record exists; an issued
	// certificate plays that part for the registrar. The lock check and the
	// update run in one repository transaction so a concurrent phase
	// advancement cannot land between them.
	locked, err := s.approvals.UpdateDecisionLocked(ctx, record.ID, requestID, laterPhaseRoles(staffRole.GeneralRole, student.StudyLevel), verdict, strings.TrimSpace(comment))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if locked {
		return nil, appErrors.Clone(appErrors.ErrDecisionLocked, "")
	}

	// The verdict is persisted at this point, so the cached aggregate is
	// stale even if phase advancement fails below.
	if err := s.cache.Delete(ctx, statusCacheKey(requestID)); err != nil {
		s.logger.Warn("failed to invalidate status cache", zap.Error(err))
	}

	s.metrics.RecordDecision(staffRole.GeneralRole, verdict)
	s.logger.Info("decision recorded",
		zap.String("request_id", requestID),
		zap.String("approver_id", approverUserID),
		zap.String("role", string(staffRole.GeneralRole)),
		zap.String("verdict", string(verdict)))

	if verdict == models.StatusApproved {
		if err := s.advance(ctx, requestID, staffRole.GeneralRole, student); err != nil {
			return nil, err
		}
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &approverUserID,
		Action:     models.AuditActionDecision,
		Resource:   "clearance_approval",
		ResourceID: &requestID,
		NewValues:  []byte(fmt.Sprintf(`{"role":%q,"verdict":%q}`, staffRole.GeneralRole, verdict)),
	}); err != nil {
		s.logger.Warn("failed to record decision audit log", zap.Error(err))
	}

	status, err := s.deriveStatus(ctx, request, student.StudyLevel)
	if err != nil {
		return nil, err
	}

	if status.Overall == models.StatusApproved && s.onFinalApproval != nil {
		s.onFinalApproval(requestID, request.StudentID)
	}

	return status, nil
}

// RequestStatus returns the derived aggregate status of a request, served
// from cache when fresh.
func (s *WorkflowService) RequestStatus(ctx context.Context, requestID string) (*models.RequestStatus, error) {
	var cached models.RequestStatus
	if err := s.cache.Get(ctx, statusCacheKey(requestID), &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	}
	s.metrics.RecordCacheOperation(false)

	request, err := s.clearance.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	student, err := s.students.FindByID(ctx, request.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	status, err := s.deriveStatus(ctx, request, student.StudyLevel)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, statusCacheKey(requestID), status, statusCacheTTL); err != nil {
		s.logger.Warn("failed to cache request status", zap.Error(err))
	}
	return status, nil
}

// IsFullyApproved reports whether every required role has approved the
// request, along with the display names of the roles that did.
func (s *WorkflowService) IsFullyApproved(ctx context.Context, requestID string) (bool, []models.GeneralRole, error) {
	status, err := s.RequestStatus(ctx, requestID)
	if err != nil {
		return false, nil, err
	}
	if status.Overall != models.StatusApproved {
		return false, nil, nil
	}
	approved := make([]models.GeneralRole, 0, len(models.GeneralRoles))
	for _, role := range models.GeneralRoles {
		if status.Roles[role] == models.StatusApproved {
			approved = append(approved, role)
		}
	}
	return true, approved, nil
}

// Queue returns the approver's requests in the given decision state.
func (s *WorkflowService) Queue(ctx context.Context, approverUserID string, status models.ApprovalStatus) ([]models.PendingRequestItem, error) {
	if _, err := s.directory.RoleOf(ctx, approverUserID); err != nil {
		return nil, err
	}
	items, err := s.approvals.ListQueue(ctx, approverUserID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval queue")
	}
	return items, nil
}

// ApproverProfile returns the approver's account joined with their workflow
// role binding.
func (s *WorkflowService) ApproverProfile(ctx context.Context, userID string) (*models.StaffProfile, error) {
	staffRole, err := s.directory.RoleOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	return &models.StaffProfile{
		User:         *user,
		GeneralRole:  staffRole.GeneralRole,
		SpecificRole: staffRole.SpecificRole,
	}, nil
}

// advance seeds the next phase's approval record when the approving role's
// phase is complete. The registrar is terminal.
func (s *WorkflowService) advance(ctx context.Context, requestID string, role models.GeneralRole, student *models.StudentDetail) error {
	nextRole, ok := models.NextRole(role)
	if !ok {
		return nil
	}

	prereq := prerequisiteRoles(nextRole, student.StudyLevel)
	nextApproverID, err := s.directory.ResolveApprover(ctx, nextRole, student)
	if err != nil {
		return err
	}

	created, err := s.approvals.AdvancePhase(ctx, requestID, prereq, len(prereq), nextApproverID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance phase")
	}
	if created {
		s.metrics.RecordPhaseAdvance(nextRole.Phase())
		s.logger.Info("request advanced",
			zap.String("request_id", requestID),
			zap.String("next_role", string(nextRole)))
	}
	return nil
}

// classifyMissingRecord decides why the approver has no record on the
// request: either the workflow has not reached their phase yet, or they are
// simply not the resolved approver.
func (s *WorkflowService) classifyMissingRecord(ctx context.Context, requestID string, role models.GeneralRole, level models.StudyLevel) error {
	if role.Phase() == models.PhaseOne {
		return appErrors.Clone(appErrors.ErrNotAssignedApprover, "")
	}

	prereq := prerequisiteRoles(role, level)
	approved, err := s.approvals.CountApprovedInRoles(ctx, requestID, prereq)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count prerequisite approvals")
	}
	if approved < len(prereq) {
		return appErrors.Clone(appErrors.ErrPhaseIncomplete, "")
	}
	return appErrors.Clone(appErrors.ErrNotAssignedApprover, "")
}

func (s *WorkflowService) deriveStatus(ctx context.Context, request *models.ClearanceRequest, level models.StudyLevel) (*models.RequestStatus, error) {
	details, err := s.approvals.ListDetailsByRequest(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
	}
	overall, total, approved, rejected, roles := models.DeriveRequestStatus(level, details)
	return &models.RequestStatus{
		RequestID:     request.ID,
		StudentID:     request.StudentID,
		Overall:       overall,
		TotalRequired: total,
		ApprovedCount: approved,
		RejectedCount: rejected,
		Roles:         roles,
		CreatedAt:     request.CreatedAt,
	}, nil
}

// prerequisiteRoles returns the roles whose approvals gate the given role's
// record being seeded.
func prerequisiteRoles(role models.GeneralRole, level models.StudyLevel) []models.GeneralRole {
	switch role {
	case models.RoleSport:
		return models.PhaseOneRoles(level)
	case models.RoleStudentAffair:
		return []models.GeneralRole{models.RoleSport}
	case models.RoleRegistrar:
		return []models.GeneralRole{models.RoleStudentAffair}
	default:
		return nil
	}
}

// laterPhaseRoles returns the required roles in phases after the given role.
func laterPhaseRoles(role models.GeneralRole, level models.StudyLevel) []models.GeneralRole {
	var later []models.GeneralRole
	for _, required := range models.RequiredRoles(level) {
		if required.Phase() > role.Phase() {
			later = append(later, required)
		}
	}
	return later
}

func statusCacheKey(requestID string) string {
	return "clearance:status:" + requestID
}
