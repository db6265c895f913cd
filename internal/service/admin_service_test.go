package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/export"
)

type adminClearanceMock struct {
	typeByName *models.ClearanceType
	typeByID   *models.ClearanceType
	schedule   *models.ClearanceSchedule
	recent     []models.RequestOverview

	createdType     *models.ClearanceType
	savedSchedule   *models.ClearanceSchedule
	toggledTo       *bool
	toggledTypeByID string
}

func (m *adminClearanceMock) ListTypes(_ context.Context) ([]models.ClearanceType, error) {
	return nil, nil
}

func (m *adminClearanceMock) FindTypeByID(_ context.Context, _ string) (*models.ClearanceType, error) {
	if m.typeByID == nil {
		return nil, sql.ErrNoRows
	}
	return m.typeByID, nil
}

func (m *adminClearanceMock) FindTypeByName(_ context.Context, _ string) (*models.ClearanceType, error) {
	if m.typeByName == nil {
		return nil, sql.ErrNoRows
	}
	return m.typeByName, nil
}

func (m *adminClearanceMock) CreateType(_ context.Context, clearanceType *models.ClearanceType) error {
	clearanceType.ID = "ct-new"
	m.createdType = clearanceType
	return nil
}

func (m *adminClearanceMock) FindScheduleByType(_ context.Context, _ string) (*models.ClearanceSchedule, error) {
	if m.schedule == nil {
		return nil, sql.ErrNoRows
	}
	return m.schedule, nil
}

func (m *adminClearanceMock) UpsertSchedule(_ context.Context, schedule *models.ClearanceSchedule) error {
	schedule.ID = "sch-1"
	m.savedSchedule = schedule
	return nil
}

func (m *adminClearanceMock) ToggleSchedule(_ context.Context, typeID string, active bool) error {
	m.toggledTypeByID = typeID
	m.toggledTo = &active
	return nil
}

func (m *adminClearanceMock) RecentRequests(_ context.Context, _ int) ([]models.RequestOverview, error) {
	return m.recent, nil
}

type adminRoleMock struct {
	assigned *models.StaffRole
	removed  string
}

func (m *adminRoleMock) Assign(_ context.Context, role *models.StaffRole) error {
	role.ID = "sr-new"
	m.assigned = role
	return nil
}

func (m *adminRoleMock) RemoveByUser(_ context.Context, userID string) error {
	m.removed = userID
	return nil
}

func (m *adminRoleMock) ListAll(_ context.Context) ([]models.StaffRoleDetail, error) {
	return nil, nil
}

type adminUserMock struct {
	user *models.User
	byID map[string]*models.User

	setActiveID string
	setActiveTo *bool
}

func (m *adminUserMock) FindByEmail(_ context.Context, _ string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *adminUserMock) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *adminUserMock) SetActive(_ context.Context, id string, active bool, _ time.Time) error {
	m.setActiveID = id
	m.setActiveTo = &active
	return nil
}

type adminFixture struct {
	clearance *adminClearanceMock
	roles     *adminRoleMock
	users     *adminUserMock
	service   *AdminService
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		clearance: &adminClearanceMock{},
		roles:     &adminRoleMock{},
		users: &adminUserMock{
			user: &models.User{ID: "staff-1", Email: "staff@example.edu", Role: models.RoleStaff},
			byID: map[string]*models.User{},
		},
	}
	f.service = NewAdminService(f.clearance, f.roles, f.users, export.NewCSVExporter(), nil, &auditMock{}, nil)
	return f
}

func TestCreateTypeRejectsDuplicateName(t *testing.T) {
	f := newAdminFixture()
	f.clearance.typeByName = &models.ClearanceType{ID: "ct-1", Name: "graduation"}

	_, err := f.service.CreateType(context.Background(), "admin-1", models.CreateClearanceTypeRequest{Name: "graduation"})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
	assert.Nil(t, f.clearance.createdType)
}

func TestCreateType(t *testing.T) {
	f := newAdminFixture()

	created, err := f.service.CreateType(context.Background(), "admin-1", models.CreateClearanceTypeRequest{Name: "id_replacement"})
	require.NoError(t, err)
	assert.Equal(t, "ct-new", created.ID)
}

func TestSetScheduleRejectsInvertedWindow(t *testing.T) {
	f := newAdminFixture()
	f.clearance.typeByID = &models.ClearanceType{ID: "ct-1"}
	now := time.Now()

	_, err := f.service.SetSchedule(context.Background(), "admin-1", models.ScheduleRequest{
		ClearanceTypeID: "ct-1",
		StartTime:       now,
		EndTime:         now.Add(-time.Hour),
		IsActive:        true,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestSetSchedule(t *testing.T) {
	f := newAdminFixture()
	f.clearance.typeByID = &models.ClearanceType{ID: "ct-1"}
	now := time.Now()

	schedule, err := f.service.SetSchedule(context.Background(), "admin-1", models.ScheduleRequest{
		ClearanceTypeID: "ct-1",
		StartTime:       now,
		EndTime:         now.Add(72 * time.Hour),
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sch-1", schedule.ID)
	assert.Equal(t, "admin-1", schedule.CreatedBy)
	require.NotNil(t, f.clearance.savedSchedule)
}

func TestToggleScheduleMissing(t *testing.T) {
	f := newAdminFixture()

	err := f.service.ToggleSchedule(context.Background(), "admin-1", "ct-1", false)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestAssignRoleScopeRules(t *testing.T) {
	f := newAdminFixture()
	scope := "Software Engineering"

	// Unscoped role must not carry a scope.
	_, err := f.service.AssignRole(context.Background(), "admin-1", models.AssignRoleRequest{
		Email:        "staff@example.edu",
		GeneralRole:  "librarian",
		SpecificRole: &scope,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	// Scoped role requires one.
	_, err = f.service.AssignRole(context.Background(), "admin-1", models.AssignRoleRequest{
		Email:       "staff@example.edu",
		GeneralRole: "department_head",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	binding, err := f.service.AssignRole(context.Background(), "admin-1", models.AssignRoleRequest{
		Email:        "staff@example.edu",
		GeneralRole:  "department_head",
		SpecificRole: &scope,
	})
	require.NoError(t, err)
	assert.Equal(t, "staff-1", binding.UserID)
	assert.Equal(t, models.RoleDepartmentHead, binding.GeneralRole)
}

func TestAssignRoleRequiresStaffAccount(t *testing.T) {
	f := newAdminFixture()
	f.users.user.Role = models.RoleStudent

	_, err := f.service.AssignRole(context.Background(), "admin-1", models.AssignRoleRequest{
		Email:       "staff@example.edu",
		GeneralRole: "librarian",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	assert.Nil(t, f.roles.assigned)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	f := newAdminFixture()

	_, err := f.service.AssignRole(context.Background(), "admin-1", models.AssignRoleRequest{
		Email:       "staff@example.edu",
		GeneralRole: "janitor",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestAdminProfile(t *testing.T) {
	f := newAdminFixture()
	f.users.byID["admin-1"] = &models.User{ID: "admin-1", Email: "admin@example.edu", Role: models.RoleAdmin}

	user, err := f.service.Profile(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.edu", user.Email)

	_, err = f.service.Profile(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestToggleUserStatusDeactivates(t *testing.T) {
	f := newAdminFixture()
	f.users.byID["staff-2"] = &models.User{ID: "staff-2", Email: "other@example.edu", Role: models.RoleStaff, Active: true}

	user, err := f.service.ToggleUserStatus(context.Background(), "admin-1", "staff-2")
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Equal(t, "staff-2", f.users.setActiveID)
	require.NotNil(t, f.users.setActiveTo)
	assert.False(t, *f.users.setActiveTo)
}

func TestToggleUserStatusRejectsSelf(t *testing.T) {
	f := newAdminFixture()
	f.users.byID["admin-1"] = &models.User{ID: "admin-1", Role: models.RoleAdmin, Active: true}

	_, err := f.service.ToggleUserStatus(context.Background(), "admin-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	assert.Empty(t, f.users.setActiveID)
}

func TestToggleUserStatusUnknownUser(t *testing.T) {
	f := newAdminFixture()

	_, err := f.service.ToggleUserStatus(context.Background(), "admin-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestExportRecentRequests(t *testing.T) {
	f := newAdminFixture()
	f.clearance.recent = []models.RequestOverview{{
		RequestID:     "req-1",
		IDNo:          "ETS0001/14",
		FirstName:     "Abel",
		LastName:      "Tesfaye",
		ClearanceType: "graduation",
		StudyLevel:    models.LevelUndergraduate,
		ApprovedCount: 7,
		RejectedCount: 0,
		CreatedAt:     time.Now(),
	}}

	payload, err := f.service.ExportRecentRequests(context.Background(), 20)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "request_id,id_no,first_name,last_name,clearance_type,study_level,approved,rejected,created_at", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "ETS0001/14")
	assert.Contains(t, lines[1], "graduation")
}
