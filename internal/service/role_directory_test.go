package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/clearance-api/internal/models"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
)

func directoryStudent(level models.StudyLevel) *models.StudentDetail {
	blockNo := "B-07"
	return &models.StudentDetail{
		Student:        models.Student{ID: "stu-1", StudyLevel: level},
		DepartmentName: "Software Engineering",
		BlockNo:        &blockNo,
	}
}

func TestResolveApproverScopedByDepartment(t *testing.T) {
	repo := &roleRepoMock{
		scoped: map[string][]models.StaffRole{
			"department_head|Software Engineering": {{UserID: "head-1"}},
		},
	}
	directory := NewRoleDirectory(repo, nil)

	approverID, err := directory.ResolveApprover(context.Background(), models.RoleDepartmentHead, directoryStudent(models.LevelUndergraduate))
	require.NoError(t, err)
	assert.Equal(t, "head-1", approverID)
}

func TestResolveApproverScopedByBlock(t *testing.T) {
	repo := &roleRepoMock{
		scoped: map[string][]models.StaffRole{
			"dormitory|B-07": {{UserID: "dorm-1"}},
		},
	}
	directory := NewRoleDirectory(repo, nil)

	approverID, err := directory.ResolveApprover(context.Background(), models.RoleDormitory, directoryStudent(models.LevelUndergraduate))
	require.NoError(t, err)
	assert.Equal(t, "dorm-1", approverID)
}

func TestResolveApproverNoBinding(t *testing.T) {
	directory := NewRoleDirectory(&roleRepoMock{unscoped: map[models.GeneralRole][]models.StaffRole{}}, nil)

	_, err := directory.ResolveApprover(context.Background(), models.RoleSport, directoryStudent(models.LevelUndergraduate))
	require.Error(t, err)
	assert.Equal(t, "APPROVER_NOT_CONFIGURED", appErrors.FromError(err).Code)
	assert.True(t, appErrors.IsConfiguration(err))
}

func TestResolveApproverAmbiguousBinding(t *testing.T) {
	repo := &roleRepoMock{
		unscoped: map[models.GeneralRole][]models.StaffRole{
			models.RoleRegistrar: {{UserID: "reg-1"}, {UserID: "reg-2"}},
		},
	}
	directory := NewRoleDirectory(repo, nil)

	_, err := directory.ResolveApprover(context.Background(), models.RoleRegistrar, directoryStudent(models.LevelUndergraduate))
	require.Error(t, err)
	assert.Equal(t, "APPROVER_NOT_CONFIGURED", appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "2 approvers")
}

func TestResolveApproverMissingScopeKey(t *testing.T) {
	directory := NewRoleDirectory(&roleRepoMock{}, nil)
	student := directoryStudent(models.LevelUndergraduate)
	student.BlockNo = nil

	_, err := directory.ResolveApprover(context.Background(), models.RoleDormitory, student)
	require.Error(t, err)
	assert.Equal(t, "APPROVER_NOT_CONFIGURED", appErrors.FromError(err).Code)
}

func TestResolvePhaseOneSet(t *testing.T) {
	repo := &roleRepoMock{
		unscoped: map[models.GeneralRole][]models.StaffRole{
			models.RoleLibrarian: {{UserID: "lib-1"}},
			models.RoleCafeteria: {{UserID: "caf-1"}},
		},
		scoped: map[string][]models.StaffRole{
			"department_head|Software Engineering": {{UserID: "head-1"}},
			"dormitory|B-07":                       {{UserID: "dorm-1"}},
		},
	}
	directory := NewRoleDirectory(repo, nil)

	approvers, err := directory.ResolvePhaseOne(context.Background(), directoryStudent(models.LevelUndergraduate))
	require.NoError(t, err)
	assert.Equal(t, []string{"head-1", "lib-1", "caf-1", "dorm-1"}, approvers)

	approvers, err = directory.ResolvePhaseOne(context.Background(), directoryStudent(models.LevelPhD))
	require.NoError(t, err)
	assert.Equal(t, []string{"head-1", "lib-1", "caf-1"}, approvers)
}
