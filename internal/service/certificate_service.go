package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/export"
	"github.com/campus-hub/clearance-api/pkg/jobs"
	"github.com/campus-hub/clearance-api/pkg/storage"
)

type certificateRepository interface {
	FindByRequestAndStudent(ctx context.Context, requestID, studentID string) (*models.Certificate, error)
	Create(ctx context.Context, certificate *models.Certificate) (bool, error)
}

type certificateClearanceRepository interface {
	FindRequestByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	FindTypeByID(ctx context.Context, id string) (*models.ClearanceType, error)
}

type certificateStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// CertificateService gates, renders and serves clearance certificates. A
// certificate is generated at most once per (request, student) pair; later
// downloads re-serve the stored document.
type CertificateService struct {
	certificates certificateRepository
	clearance    certificateClearanceRepository
	students     certificateStudentRepository
	workflow     *WorkflowService
	renderer     *export.CertificateRenderer
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	metrics      *MetricsService
	audit        auditRecorder
	logger       *zap.Logger
	institution  string
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(certificates certificateRepository, clearance certificateClearanceRepository, students certificateStudentRepository, workflow *WorkflowService, renderer *export.CertificateRenderer, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics *MetricsService, audit auditRecorder, logger *zap.Logger, institution string) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certificates: certificates,
		clearance:    clearance,
		students:     students,
		workflow:     workflow,
		renderer:     renderer,
		store:        store,
		signer:       signer,
		metrics:      metrics,
		audit:        audit,
		logger:       logger,
		institution:  institution,
	}
}

// Download returns the certificate document for the student's own request,
// generating and storing it on first access. The request must be fully
// approved.
func (s *CertificateService) Download(ctx context.Context, userID, requestID string) (*models.Certificate, []byte, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	request, err := s.clearance.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.StudentID != student.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}

	certificate, err := s.ensure(ctx, request, student, userID)
	if err != nil {
		return nil, nil, err
	}

	document, err := s.store.Read(certificate.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read stored certificate")
	}
	return certificate, document, nil
}

// SignedLink issues a time-limited download token for the certificate so it
// can be fetched without an Authorization header.
func (s *CertificateService) SignedLink(ctx context.Context, userID, requestID string) (string, time.Time, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	request, err := s.clearance.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.StudentID != student.ID {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}

	certificate, err := s.ensure(ctx, request, student, userID)
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.signer.Generate(certificate.ID, certificate.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return token, expiresAt, nil
}

// ServeSigned resolves a signed token to the stored document.
func (s *CertificateService) ServeSigned(token string) ([]byte, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	document, err := s.store.Read(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored certificate not found")
	}
	return document, nil
}

// HandleJob pre-renders a certificate in the background once a request
// becomes fully approved, so the student's first download is instant.
func (s *CertificateService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(CertificateJobPayload)
	if !ok {
		return fmt.Errorf("certificate job %s: unexpected payload %T", job.ID, job.Payload)
	}

	request, err := s.clearance.FindRequestByID(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("certificate job load request: %w", err)
	}
	student, err := s.students.FindByID(ctx, payload.StudentID)
	if err != nil {
		return fmt.Errorf("certificate job load student: %w", err)
	}
	if _, err := s.ensure(ctx, request, student, student.UserID); err != nil {
		return fmt.Errorf("certificate job render: %w", err)
	}
	return nil
}

// CertificateJobPayload identifies the request a background render targets.
type CertificateJobPayload struct {
	RequestID string
	StudentID string
}

// ensure returns the stored certificate record, generating the document when
// it does not exist yet. Concurrent callers race on the conditional insert;
// the loser re-reads the winner's record.
func (s *CertificateService) ensure(ctx context.Context, request *models.ClearanceRequest, student *models.StudentDetail, actorID string) (*models.Certificate, error) {
	existing, err := s.certificates.FindByRequestAndStudent(ctx, request.ID, student.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	approved, approvedRoles, err := s.workflow.IsFullyApproved(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrNotApproved, "")
	}

	clearanceType, err := s.clearance.FindTypeByID(ctx, request.ClearanceTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}

	serial := fmt.Sprintf("CLR-%s-%s", time.Now().UTC().Format("20060102"), shortID(request.ID))
	roleNames := make([]string, 0, len(approvedRoles))
	for _, role := range approvedRoles {
		roleNames = append(roleNames, string(role))
	}

	document, err := s.renderer.Render(export.CertificateData{
		Institution:   s.institution,
		StudentName:   student.FirstName + " " + student.LastName,
		IDNo:          student.IDNo,
		Department:    student.DepartmentName,
		ClearanceType: clearanceType.Name,
		Serial:        serial,
		ApprovedRoles: roleNames,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	filename := fmt.Sprintf("%s_%s.pdf", student.IDNo, shortID(request.ID))
	if _, err := s.store.Save(filename, document); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	certificate := &models.Certificate{
		RequestID: request.ID,
		StudentID: student.ID,
		FilePath:  filename,
		Serial:    serial,
	}
	created, err := s.certificates.Create(ctx, certificate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate")
	}
	if !created {
		existing, err := s.certificates.FindByRequestAndStudent(ctx, request.ID, student.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload certificate")
		}
		return existing, nil
	}

	s.metrics.RecordCertificateIssued()
	s.logger.Info("certificate issued",
		zap.String("request_id", request.ID),
		zap.String("student_id", student.ID),
		zap.String("serial", serial))

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCertificate,
		Resource:   "certificate",
		ResourceID: &certificate.ID,
		NewValues:  []byte(fmt.Sprintf(`{"serial":%q}`, serial)),
	}); err != nil {
		s.logger.Warn("failed to record certificate audit log", zap.Error(err))
	}

	return certificate, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
