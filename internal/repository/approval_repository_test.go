package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/clearance-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByRequestAndApprover(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "request_id", "approver_id", "status", "comment", "decided_at", "updated_at"}).
		AddRow("a1", "r1", "u1", "pending", "", nil, now)
	mock.ExpectQuery("SELECT id, request_id, approver_id, status, comment, decided_at, updated_at").
		WithArgs("r1", "u1").
		WillReturnRows(rows)

	record, err := repo.FindByRequestAndApprover(context.Background(), "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDecisionLockedPersistsOpenDecision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM certificates")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	mock.ExpectExec("UPDATE clearance_approvals").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	later := []models.GeneralRole{models.RoleSport, models.RoleStudentAffair, models.RoleRegistrar}
	locked, err := repo.UpdateDecisionLocked(context.Background(), "a1", "r1", later, models.StatusApproved, "")
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDecisionLockedByLaterPhase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	later := []models.GeneralRole{models.RoleSport}
	locked, err := repo.UpdateDecisionLocked(context.Background(), "a1", "r1", later, models.StatusRejected, "late retraction")
	require.NoError(t, err)
	assert.True(t, locked, "no update may run once a later phase exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDecisionLockedByIssuedCertificate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	// The registrar has no later phase; the certificate row is the lock.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM certificates")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	locked, err := repo.UpdateDecisionLocked(context.Background(), "a7", "r1", nil, models.StatusRejected, "changed my mind")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountApprovedCountsRolesNotRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	// One user holding two phase-one duties must not satisfy both with a
	// single approval row.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	roles := []models.GeneralRole{models.RoleDepartmentHead, models.RoleLibrarian, models.RoleCafeteria, models.RoleDormitory}
	count, err := repo.CountApprovedInRoles(context.Background(), "r1", roles)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvancePhaseBelowThreshold(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	roles := []models.GeneralRole{models.RoleDepartmentHead, models.RoleLibrarian, models.RoleCafeteria, models.RoleDormitory}
	created, err := repo.AdvancePhase(context.Background(), "r1", roles, 4, "sport-user")
	require.NoError(t, err)
	assert.False(t, created, "next phase must not be seeded before the phase is complete")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvancePhaseSeedsNextApprover(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO clearance_approvals").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	roles := []models.GeneralRole{models.RoleDepartmentHead, models.RoleLibrarian, models.RoleCafeteria, models.RoleDormitory}
	created, err := repo.AdvancePhase(context.Background(), "r1", roles, 4, "sport-user")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvancePhaseConflictIsNoOp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	// A concurrent decision already inserted the row; ON CONFLICT DO
	// NOTHING reports zero rows affected.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT sr.general_role) FROM clearance_approvals")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO clearance_approvals").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	roles := []models.GeneralRole{models.RoleDepartmentHead, models.RoleLibrarian, models.RoleCafeteria, models.RoleDormitory}
	created, err := repo.AdvancePhase(context.Background(), "r1", roles, 4, "sport-user")
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQueue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"request_id", "student_id", "first_name", "last_name", "email", "id_no", "room_no", "department_name", "study_level", "year_of_study", "clearance_type", "status", "comment", "created_at"}).
		AddRow("r1", "s1", "Abel", "Tesfaye", "abel@example.edu", "ETS0001/14", "B-12", "Software Engineering", "undergraduate", 5, "graduation", "pending", "", now)
	mock.ExpectQuery("SELECT cr.id AS request_id").
		WithArgs("u1", "pending").
		WillReturnRows(rows)

	items, err := repo.ListQueue(context.Background(), "u1", models.StatusPending)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "graduation", items[0].ClearanceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}
