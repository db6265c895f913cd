package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

type requestStudentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

type requestClearanceRepository interface {
	FindTypeByID(ctx context.Context, id string) (*models.ClearanceType, error)
	FindScheduleByType(ctx context.Context, typeID string) (*models.ClearanceSchedule, error)
	RequestExists(ctx context.Context, studentID, typeID string) (bool, error)
	CreateWithApprovals(ctx context.Context, request *models.ClearanceRequest, approverIDs []string) error
	ListRequestsByStudent(ctx context.Context, studentID string) ([]models.StudentRequest, error)
	ListTypes(ctx context.Context) ([]models.ClearanceType, error)
}

type requestApprovalRepository interface {
	ListDetailsByRequest(ctx context.Context, requestID string) ([]models.ApprovalDetail, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequestService handles clearance request submission and the student's own
// status view.
type RequestService struct {
	students  requestStudentRepository
	clearance requestClearanceRepository
	approvals requestApprovalRepository
	directory *RoleDirectory
	audit     auditRecorder
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(students requestStudentRepository, clearance requestClearanceRepository, approvals requestApprovalRepository, directory *RoleDirectory, audit auditRecorder, metrics *MetricsService, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		students:  students,
		clearance: clearance,
		approvals: approvals,
		directory: directory,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListTypes returns the clearance types a student can request.
func (s *RequestService) ListTypes(ctx context.Context) ([]models.ClearanceType, error) {
	types, err := s.clearance.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	return types, nil
}

// Submit creates a clearance request for the authenticated student. The
// schedule window and duplicate checks run first; the request row and its
// complete first-phase approval set are then written atomically.
func (s *RequestService) Submit(ctx context.Context, userID, clearanceTypeID string) (*models.ClearanceRequest, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	clearanceType, err := s.clearance.FindTypeByID(ctx, clearanceTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}

	schedule, err := s.clearance.FindScheduleByType(ctx, clearanceType.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrScheduleClosed, "no active schedule for this clearance type")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if !schedule.Open(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrScheduleClosed, "")
	}

	exists, err := s.clearance.RequestExists(ctx, student.ID, clearanceType.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing request")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}

	approverIDs, err := s.directory.ResolvePhaseOne(ctx, student)
	if err != nil {
		return nil, err
	}

	request := &models.ClearanceRequest{
		StudentID:       student.ID,
		ClearanceTypeID: clearanceType.ID,
		CreatedAt:       s.now(),
	}
	if err := s.clearance.CreateWithApprovals(ctx, request, approverIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.metrics.RecordRequestOpened()
	s.logger.Info("clearance request submitted",
		zap.String("request_id", request.ID),
		zap.String("student_id", student.ID),
		zap.String("clearance_type", clearanceType.Name),
		zap.Int("phase_one_approvers", len(approverIDs)))

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionRequestSubmit,
		Resource:   "clearance_request",
		ResourceID: &request.ID,
		NewValues:  []byte(`{"clearance_type":"` + clearanceType.Name + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record submission audit log", zap.Error(err))
	}

	return request, nil
}

// StatusForStudent returns every request of the authenticated student with
// its derived aggregate status and per-role breakdown.
func (s *RequestService) StatusForStudent(ctx context.Context, userID string) ([]models.RequestStatus, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	requests, err := s.clearance.ListRequestsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	statuses := make([]models.RequestStatus, 0, len(requests))
	for _, request := range requests {
		details, err := s.approvals.ListDetailsByRequest(ctx, request.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approvals")
		}
		overall, total, approved, rejected, roles := models.DeriveRequestStatus(request.StudyLevel, details)
		statuses = append(statuses, models.RequestStatus{
			RequestID:     request.ID,
			StudentID:     request.StudentID,
			ClearanceType: request.ClearanceType,
			Overall:       overall,
			TotalRequired: total,
			ApprovedCount: approved,
			RejectedCount: rejected,
			Roles:         roles,
			CreatedAt:     request.CreatedAt,
			CertificateAt: request.CertificateAt,
		})
	}
	return statuses, nil
}
