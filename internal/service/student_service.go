package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

type studentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ListOverview(ctx context.Context) ([]models.StudentOverview, error)
	BulkCreate(ctx context.Context, users []models.User, students []models.Student) error
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListBlocks(ctx context.Context) ([]models.Block, error)
	FindDepartmentByName(ctx context.Context, name string) (*models.Department, error)
	FindBlockByNo(ctx context.Context, blockNo string) (*models.Block, error)
}

// ImportReport summarises a completed CSV import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// importColumns is the required CSV header, in order.
var importColumns = []string{"first_name", "last_name", "email", "id_no", "department", "block_no", "study_level", "year_of_study", "room_no"}

// StudentService handles student profiles and the admin roster import.
type StudentService struct {
	repo    studentRepository
	audit   auditRecorder
	logger  *zap.Logger
	maxRows int
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, audit auditRecorder, logger *zap.Logger, maxRows int) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &StudentService{repo: repo, audit: audit, logger: logger, maxRows: maxRows}
}

// Profile returns the authenticated student's profile.
func (s *StudentService) Profile(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ListOverview returns the admin student roster with coarse clearance status.
func (s *StudentService) ListOverview(ctx context.Context) ([]models.StudentOverview, error) {
	students, err := s.repo.ListOverview(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// ListDepartments returns the department lookup.
func (s *StudentService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// ListBlocks returns the dormitory block lookup.
func (s *StudentService) ListBlocks(ctx context.Context) ([]models.Block, error) {
	blocks, err := s.repo.ListBlocks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	return blocks, nil
}

// Import reads a CSV roster and creates accounts and profiles in one
// transaction. The whole file is validated before anything is written; the
// initial password of each imported account is its ID number and must be
// changed on first login.
func (s *StudentService) Import(ctx context.Context, adminID string, reader io.Reader) (*ImportReport, error) {
	records := csv.NewReader(reader)
	records.TrimLeadingSpace = true

	header, err := records.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read CSV header")
	}
	if err := validateHeader(header); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid CSV header")
	}

	var (
		users     []models.User
		students  []models.Student
		rowErrors []string
		line      = 1
	)

	for {
		row, err := records.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if len(users) >= s.maxRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import exceeds %d rows", s.maxRows))
		}

		user, student, err := s.parseRow(ctx, row)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		users = append(users, *user)
		students = append(students, *student)
	}

	if len(rowErrors) > 0 {
		return &ImportReport{Imported: 0, Errors: rowErrors},
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%d rows failed validation", len(rowErrors)))
	}
	if len(users) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "CSV contains no rows")
	}

	if err := s.repo.BulkCreate(ctx, users, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import students")
	}

	s.logger.Info("students imported", zap.Int("count", len(users)), zap.String("admin_id", adminID))
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &adminID,
		Action:    models.AuditActionImport,
		Resource:  "students",
		NewValues: []byte(fmt.Sprintf(`{"imported":%d}`, len(users))),
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}

	return &ImportReport{Imported: len(users)}, nil
}

func (s *StudentService) parseRow(ctx context.Context, row []string) (*models.User, *models.Student, error) {
	if len(row) != len(importColumns) {
		return nil, nil, fmt.Errorf("expected %d columns, got %d", len(importColumns), len(row))
	}

	firstName := strings.TrimSpace(row[0])
	lastName := strings.TrimSpace(row[1])
	email := strings.ToLower(strings.TrimSpace(row[2]))
	idNo := strings.TrimSpace(row[3])
	departmentName := strings.TrimSpace(row[4])
	blockNo := strings.TrimSpace(row[5])
	level := models.StudyLevel(strings.ToLower(strings.TrimSpace(row[6])))
	roomNo := strings.TrimSpace(row[8])

	if firstName == "" || lastName == "" || email == "" || idNo == "" {
		return nil, nil, fmt.Errorf("first_name, last_name, email and id_no are required")
	}
	if level != models.LevelUndergraduate && level != models.LevelMasters && level != models.LevelPhD {
		return nil, nil, fmt.Errorf("unknown study_level %q", level)
	}

	year, err := strconv.Atoi(strings.TrimSpace(row[7]))
	if err != nil || year < 1 {
		return nil, nil, fmt.Errorf("invalid year_of_study %q", row[7])
	}

	department, err := s.repo.FindDepartmentByName(ctx, departmentName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("unknown department %q", departmentName)
		}
		return nil, nil, fmt.Errorf("lookup department: %w", err)
	}

	var blockID *string
	if blockNo != "" {
		block, err := s.repo.FindBlockByNo(ctx, blockNo)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, fmt.Errorf("unknown block %q", blockNo)
			}
			return nil, nil, fmt.Errorf("lookup block: %w", err)
		}
		blockID = &block.ID
	} else if !level.Doctoral() {
		return nil, nil, fmt.Errorf("block_no is required below doctoral level")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(idNo), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash initial password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleStudent,
		Active:       true,
	}
	student := &models.Student{
		IDNo:         idNo,
		DepartmentID: department.ID,
		BlockID:      blockID,
		StudyLevel:   level,
		YearOfStudy:  year,
		RoomNo:       roomNo,
	}
	return user, student, nil
}

func validateHeader(header []string) error {
	if len(header) != len(importColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(importColumns), len(header))
	}
	for i, column := range importColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != column {
			return fmt.Errorf("column %d must be %q, got %q", i+1, column, header[i])
		}
	}
	return nil
}
