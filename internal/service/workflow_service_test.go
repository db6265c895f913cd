package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

type workflowApprovalMock struct {
	record         *models.ApprovalRecord
	recordErr      error
	details        []models.ApprovalDetail
	approvedCount  int
	laterPhase     bool
	advanceCreated bool
	queue          []models.PendingRequestItem

	updatedID       string
	updatedStatus   models.ApprovalStatus
	updatedComment  string
	lockRoles       []models.GeneralRole
	countCalled     bool
	countRoles      []models.GeneralRole
	advanceCalled   bool
	advanceRoles    []models.GeneralRole
	advanceRequired int
	advanceApprover string
}

func (m *workflowApprovalMock) FindByRequestAndApprover(_ context.Context, _, _ string) (*models.ApprovalRecord, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	return m.record, nil
}

func (m *workflowApprovalMock) ListDetailsByRequest(_ context.Context, _ string) ([]models.ApprovalDetail, error) {
	return m.details, nil
}

func (m *workflowApprovalMock) UpdateDecisionLocked(_ context.Context, id, _ string, laterRoles []models.GeneralRole, status models.ApprovalStatus, comment string) (bool, error) {
	m.lockRoles = laterRoles
	if m.laterPhase {
		return true, nil
	}
	m.updatedID = id
	m.updatedStatus = status
	m.updatedComment = comment
	return false, nil
}

func (m *workflowApprovalMock) CountApprovedInRoles(_ context.Context, _ string, roles []models.GeneralRole) (int, error) {
	m.countCalled = true
	m.countRoles = roles
	return m.approvedCount, nil
}

func (m *workflowApprovalMock) AdvancePhase(_ context.Context, _ string, roles []models.GeneralRole, required int, approverID string) (bool, error) {
	m.advanceCalled = true
	m.advanceRoles = roles
	m.advanceRequired = required
	m.advanceApprover = approverID
	return m.advanceCreated, nil
}

func (m *workflowApprovalMock) ListQueue(_ context.Context, _ string, _ models.ApprovalStatus) ([]models.PendingRequestItem, error) {
	return m.queue, nil
}

type workflowClearanceMock struct {
	request *models.ClearanceRequest
	err     error
}

func (m *workflowClearanceMock) FindRequestByID(_ context.Context, _ string) (*models.ClearanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.request, nil
}

type workflowStudentMock struct {
	student *models.StudentDetail
}

func (m *workflowStudentMock) FindByID(_ context.Context, _ string) (*models.StudentDetail, error) {
	return m.student, nil
}

type workflowUserMock struct {
	users map[string]*models.User
}

func (m *workflowUserMock) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type roleRepoMock struct {
	byUser   map[string]*models.StaffRole
	unscoped map[models.GeneralRole][]models.StaffRole
	scoped   map[string][]models.StaffRole
}

func (m *roleRepoMock) FindByUser(_ context.Context, userID string) (*models.StaffRole, error) {
	role, ok := m.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return role, nil
}

func (m *roleRepoMock) ListUnscoped(_ context.Context, role models.GeneralRole) ([]models.StaffRole, error) {
	return m.unscoped[role], nil
}

func (m *roleRepoMock) ListScoped(_ context.Context, role models.GeneralRole, scopeKey string) ([]models.StaffRole, error) {
	return m.scoped[string(role)+"|"+scopeKey], nil
}

type cacheMock struct {
	store   map[string][]byte
	deleted []string
}

func newCacheMock() *cacheMock {
	return &cacheMock{store: make(map[string][]byte)}
}

func (m *cacheMock) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *cacheMock) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *cacheMock) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.store, key)
	return nil
}

type auditMock struct {
	logs []*models.AuditLog
}

func (m *auditMock) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type workflowFixture struct {
	approvals *workflowApprovalMock
	clearance *workflowClearanceMock
	students  *workflowStudentMock
	users     *workflowUserMock
	roles     *roleRepoMock
	cache     *cacheMock
	audit     *auditMock
	service   *WorkflowService
}

func staffRoleOf(userID string, role models.GeneralRole) *models.StaffRole {
	return &models.StaffRole{ID: "sr-" + userID, UserID: userID, GeneralRole: role}
}

func newWorkflowFixture(level models.StudyLevel) *workflowFixture {
	blockNo := "B-07"
	f := &workflowFixture{
		approvals: &workflowApprovalMock{},
		clearance: &workflowClearanceMock{request: &models.ClearanceRequest{
			ID:        "req-1",
			StudentID: "stu-1",
			CreatedAt: time.Now(),
		}},
		students: &workflowStudentMock{student: &models.StudentDetail{
			Student:        models.Student{ID: "stu-1", UserID: "stu-user-1", StudyLevel: level},
			DepartmentName: "Software Engineering",
			BlockNo:        &blockNo,
		}},
		roles: &roleRepoMock{
			byUser: map[string]*models.StaffRole{},
			unscoped: map[models.GeneralRole][]models.StaffRole{
				models.RoleSport:         {{UserID: "sport-1", GeneralRole: models.RoleSport}},
				models.RoleStudentAffair: {{UserID: "affair-1", GeneralRole: models.RoleStudentAffair}},
				models.RoleRegistrar:     {{UserID: "registrar-1", GeneralRole: models.RoleRegistrar}},
			},
			scoped: map[string][]models.StaffRole{},
		},
		users: &workflowUserMock{users: map[string]*models.User{}},
		cache: newCacheMock(),
		audit: &auditMock{},
	}
	directory := NewRoleDirectory(f.roles, nil)
	f.service = NewWorkflowService(f.approvals, f.clearance, f.students, f.users, directory, f.cache, nil, f.audit, nil)
	return f
}

func approvedDetail(role models.GeneralRole) models.ApprovalDetail {
	return models.ApprovalDetail{
		ApprovalRecord: models.ApprovalRecord{ID: "ap-" + string(role), Status: models.StatusApproved},
		Role:           role,
	}
}

func TestRecordDecisionRejectRequiresComment(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)

	_, err := f.service.RecordDecision(context.Background(), "lib-1", "req-1", models.StatusRejected, "   ")
	require.Error(t, err)
	assert.Equal(t, "COMMENT_REQUIRED", appErrors.FromError(err).Code)
	assert.Empty(t, f.approvals.updatedID)
}

func TestRecordDecisionRejectsUndecidedVerdict(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)

	_, err := f.service.RecordDecision(context.Background(), "lib-1", "req-1", models.StatusPending, "")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestRecordDecisionWithoutStaffRole(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)

	_, err := f.service.RecordDecision(context.Background(), "nobody", "req-1", models.StatusApproved, "")
	require.Error(t, err)
	assert.Equal(t, "NO_ROLE", appErrors.FromError(err).Code)
}

func TestRecordDecisionPhaseOneNotAssigned(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["lib-2"] = staffRoleOf("lib-2", models.RoleLibrarian)
	f.approvals.recordErr = sql.ErrNoRows

	_, err := f.service.RecordDecision(context.Background(), "lib-2", "req-1", models.StatusApproved, "")
	require.Error(t, err)
	assert.Equal(t, "NOT_ASSIGNED_APPROVER", appErrors.FromError(err).Code)
	assert.False(t, f.approvals.countCalled, "phase one needs no prerequisite check")
}

func TestRecordDecisionBeforePhaseComplete(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["sport-1"] = staffRoleOf("sport-1", models.RoleSport)
	f.approvals.recordErr = sql.ErrNoRows
	f.approvals.approvedCount = 2

	_, err := f.service.RecordDecision(context.Background(), "sport-1", "req-1", models.StatusApproved, "")
	require.Error(t, err)
	assert.Equal(t, "PHASE_INCOMPLETE", appErrors.FromError(err).Code)
	assert.Len(t, f.approvals.countRoles, 4)
	assert.Empty(t, f.approvals.updatedID, "no decision may be written before the phase opens")
}

func TestRecordDecisionLaterPhaseNotAssigned(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["sport-2"] = staffRoleOf("sport-2", models.RoleSport)
	f.approvals.recordErr = sql.ErrNoRows
	f.approvals.approvedCount = 4

	_, err := f.service.RecordDecision(context.Background(), "sport-2", "req-1", models.StatusApproved, "")
	require.Error(t, err)
	assert.Equal(t, "NOT_ASSIGNED_APPROVER", appErrors.FromError(err).Code)
}

func TestRecordDecisionLockedAfterPhaseAdvance(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["lib-2"] = staffRoleOf("lib-2", models.RoleLibrarian)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-1", RequestID: "req-1", ApproverID: "lib-2", Status: models.StatusApproved}
	f.approvals.laterPhase = true

	_, err := f.service.RecordDecision(context.Background(), "lib-2", "req-1", models.StatusRejected, "books missing")
	require.Error(t, err)
	assert.Equal(t, "DECISION_LOCKED", appErrors.FromError(err).Code)
	assert.Empty(t, f.approvals.updatedID)
	assert.Len(t, f.approvals.lockRoles, 3, "librarian is locked by the three later phases")
}

func TestRecordDecisionFinalPhaseOneApprovalAdvances(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["dorm-1"] = staffRoleOf("dorm-1", models.RoleDormitory)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-1", RequestID: "req-1", ApproverID: "dorm-1", Status: models.StatusPending}
	f.approvals.advanceCreated = true
	f.approvals.details = []models.ApprovalDetail{
		approvedDetail(models.RoleDepartmentHead),
		approvedDetail(models.RoleLibrarian),
		approvedDetail(models.RoleCafeteria),
		approvedDetail(models.RoleDormitory),
	}

	status, err := f.service.RecordDecision(context.Background(), "dorm-1", "req-1", models.StatusApproved, "")
	require.NoError(t, err)

	assert.Equal(t, "ap-1", f.approvals.updatedID)
	assert.Equal(t, models.StatusApproved, f.approvals.updatedStatus)
	require.True(t, f.approvals.advanceCalled)
	assert.Len(t, f.approvals.advanceRoles, 4)
	assert.Equal(t, 4, f.approvals.advanceRequired)
	assert.Equal(t, "sport-1", f.approvals.advanceApprover)

	assert.Equal(t, models.StatusPending, status.Overall)
	assert.Equal(t, 7, status.TotalRequired)
	assert.Equal(t, 4, status.ApprovedCount)
	assert.Contains(t, f.cache.deleted, "clearance:status:req-1")
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionDecision, f.audit.logs[0].Action)
}

func TestRecordDecisionAdvanceFailureStillInvalidatesCache(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["dorm-1"] = staffRoleOf("dorm-1", models.RoleDormitory)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-1", RequestID: "req-1", ApproverID: "dorm-1", Status: models.StatusPending}
	delete(f.roles.unscoped, models.RoleSport)

	stale := models.RequestStatus{RequestID: "req-1", ApprovedCount: 3}
	require.NoError(t, f.cache.Set(context.Background(), "clearance:status:req-1", stale, time.Minute))

	_, err := f.service.RecordDecision(context.Background(), "dorm-1", "req-1", models.StatusApproved, "")
	require.Error(t, err)
	assert.Equal(t, "APPROVER_NOT_CONFIGURED", appErrors.FromError(err).Code)

	// The verdict itself was persisted, so the cached snapshot must be gone
	// even though advancement failed.
	assert.Equal(t, models.StatusApproved, f.approvals.updatedStatus)
	assert.Contains(t, f.cache.deleted, "clearance:status:req-1")
	assert.NotContains(t, f.cache.store, "clearance:status:req-1")
}

func TestRecordDecisionDoctoralPhaseOneNeedsThreeApprovals(t *testing.T) {
	f := newWorkflowFixture(models.LevelPhD)
	f.roles.byUser["caf-1"] = staffRoleOf("caf-1", models.RoleCafeteria)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-1", RequestID: "req-1", ApproverID: "caf-1", Status: models.StatusPending}
	f.approvals.details = []models.ApprovalDetail{
		approvedDetail(models.RoleDepartmentHead),
		approvedDetail(models.RoleLibrarian),
		approvedDetail(models.RoleCafeteria),
	}

	status, err := f.service.RecordDecision(context.Background(), "caf-1", "req-1", models.StatusApproved, "")
	require.NoError(t, err)

	require.True(t, f.approvals.advanceCalled)
	assert.Len(t, f.approvals.advanceRoles, 3)
	assert.NotContains(t, f.approvals.advanceRoles, models.RoleDormitory)
	assert.Equal(t, 3, f.approvals.advanceRequired)
	assert.Equal(t, 6, status.TotalRequired)
	assert.Equal(t, models.StatusSkipped, status.Roles[models.RoleDormitory])
}

func TestRecordDecisionRegistrarApprovalFiresHook(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["registrar-1"] = staffRoleOf("registrar-1", models.RoleRegistrar)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-7", RequestID: "req-1", ApproverID: "registrar-1", Status: models.StatusPending}
	details := make([]models.ApprovalDetail, 0, len(models.GeneralRoles))
	for _, role := range models.GeneralRoles {
		details = append(details, approvedDetail(role))
	}
	f.approvals.details = details

	var hookRequest, hookStudent string
	f.service.OnFinalApproval(func(requestID, studentID string) {
		hookRequest = requestID
		hookStudent = studentID
	})

	status, err := f.service.RecordDecision(context.Background(), "registrar-1", "req-1", models.StatusApproved, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, status.Overall)
	assert.False(t, f.approvals.advanceCalled, "registrar is the terminal phase")
	assert.Equal(t, "req-1", hookRequest)
	assert.Equal(t, "stu-1", hookStudent)
}

func TestRecordDecisionRejectionSuppressesHook(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.roles.byUser["registrar-1"] = staffRoleOf("registrar-1", models.RoleRegistrar)
	f.approvals.record = &models.ApprovalRecord{ID: "ap-7", RequestID: "req-1", ApproverID: "registrar-1", Status: models.StatusPending}
	f.approvals.details = []models.ApprovalDetail{
		approvedDetail(models.RoleDepartmentHead),
		{ApprovalRecord: models.ApprovalRecord{ID: "ap-7", Status: models.StatusRejected}, Role: models.RoleRegistrar},
	}

	fired := false
	f.service.OnFinalApproval(func(_, _ string) { fired = true })

	status, err := f.service.RecordDecision(context.Background(), "registrar-1", "req-1", models.StatusRejected, "unpaid dues")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, status.Overall)
	assert.False(t, f.approvals.advanceCalled)
	assert.False(t, fired)
}

func TestRequestStatusServedFromCache(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	f.approvals.details = []models.ApprovalDetail{approvedDetail(models.RoleLibrarian)}

	first, err := f.service.RequestStatus(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Contains(t, f.cache.store, "clearance:status:req-1")

	// Poison the backing details; a cache hit must not recompute.
	f.approvals.details = nil
	second, err := f.service.RequestStatus(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, first.ApprovedCount, second.ApprovedCount)
	assert.Equal(t, 1, second.ApprovedCount)
}

func TestIsFullyApproved(t *testing.T) {
	f := newWorkflowFixture(models.LevelPhD)
	for _, role := range models.RequiredRoles(models.LevelPhD) {
		f.approvals.details = append(f.approvals.details, approvedDetail(role))
	}

	approved, roles, err := f.service.IsFullyApproved(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Len(t, roles, 6)
	assert.NotContains(t, roles, models.RoleDormitory)
}

func TestApproverProfile(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)
	scope := "Software Engineering"
	f.roles.byUser["head-1"] = &models.StaffRole{ID: "sr-head-1", UserID: "head-1", GeneralRole: models.RoleDepartmentHead, SpecificRole: &scope}
	f.users.users["head-1"] = &models.User{ID: "head-1", Email: "head@example.edu", FirstName: "Sara", Role: models.RoleStaff}

	profile, err := f.service.ApproverProfile(context.Background(), "head-1")
	require.NoError(t, err)
	assert.Equal(t, "head@example.edu", profile.User.Email)
	assert.Equal(t, models.RoleDepartmentHead, profile.GeneralRole)
	require.NotNil(t, profile.SpecificRole)
	assert.Equal(t, scope, *profile.SpecificRole)
}

func TestApproverProfileRequiresRole(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)

	_, err := f.service.ApproverProfile(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, "NO_ROLE", appErrors.FromError(err).Code)
}

func TestQueueRequiresStaffRole(t *testing.T) {
	f := newWorkflowFixture(models.LevelUndergraduate)

	_, err := f.service.Queue(context.Background(), "nobody", models.StatusPending)
	require.Error(t, err)
	assert.Equal(t, "NO_ROLE", appErrors.FromError(err).Code)

	f.roles.byUser["lib-1"] = staffRoleOf("lib-1", models.RoleLibrarian)
	f.approvals.queue = []models.PendingRequestItem{{RequestID: "req-1"}}
	items, err := f.service.Queue(context.Background(), "lib-1", models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
