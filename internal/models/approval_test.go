package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func detail(role GeneralRole, status ApprovalStatus) ApprovalDetail {
	return ApprovalDetail{
		ApprovalRecord: ApprovalRecord{Status: status},
		Role:           role,
	}
}

func TestDeriveRequestStatusAllApproved(t *testing.T) {
	details := []ApprovalDetail{
		detail(RoleDepartmentHead, StatusApproved),
		detail(RoleLibrarian, StatusApproved),
		detail(RoleCafeteria, StatusApproved),
		detail(RoleDormitory, StatusApproved),
		detail(RoleSport, StatusApproved),
		detail(RoleStudentAffair, StatusApproved),
		detail(RoleRegistrar, StatusApproved),
	}

	overall, total, approved, rejected, roles := DeriveRequestStatus(LevelUndergraduate, details)
	assert.Equal(t, StatusApproved, overall)
	assert.Equal(t, 7, total)
	assert.Equal(t, 7, approved)
	assert.Zero(t, rejected)
	assert.Equal(t, StatusApproved, roles[RoleRegistrar])
}

func TestDeriveRequestStatusRejectionDominates(t *testing.T) {
	details := []ApprovalDetail{
		detail(RoleDepartmentHead, StatusApproved),
		detail(RoleLibrarian, StatusApproved),
		detail(RoleCafeteria, StatusApproved),
		detail(RoleDormitory, StatusRejected),
		detail(RoleSport, StatusApproved),
		detail(RoleStudentAffair, StatusApproved),
		detail(RoleRegistrar, StatusApproved),
	}

	overall, _, _, rejected, _ := DeriveRequestStatus(LevelUndergraduate, details)
	assert.Equal(t, StatusRejected, overall)
	assert.Equal(t, 1, rejected)
}

func TestDeriveRequestStatusMissingRoleReadsPending(t *testing.T) {
	details := []ApprovalDetail{
		detail(RoleDepartmentHead, StatusApproved),
		detail(RoleLibrarian, StatusApproved),
		detail(RoleCafeteria, StatusApproved),
	}

	overall, total, approved, _, roles := DeriveRequestStatus(LevelUndergraduate, details)
	assert.Equal(t, StatusPending, overall)
	assert.Equal(t, 7, total)
	assert.Equal(t, 3, approved)
	assert.Equal(t, StatusPending, roles[RoleDormitory])
	assert.Equal(t, StatusPending, roles[RoleSport])
}

func TestDeriveRequestStatusDoctoralSkipsDormitory(t *testing.T) {
	details := []ApprovalDetail{
		detail(RoleDepartmentHead, StatusApproved),
		detail(RoleLibrarian, StatusApproved),
		detail(RoleCafeteria, StatusApproved),
		detail(RoleSport, StatusApproved),
		detail(RoleStudentAffair, StatusApproved),
		detail(RoleRegistrar, StatusApproved),
	}

	overall, total, _, _, roles := DeriveRequestStatus(LevelPhD, details)
	assert.Equal(t, StatusApproved, overall)
	assert.Equal(t, 6, total)
	assert.Equal(t, StatusSkipped, roles[RoleDormitory])
}

func TestPhaseOneRolesByLevel(t *testing.T) {
	assert.Len(t, PhaseOneRoles(LevelUndergraduate), 4)
	assert.Len(t, PhaseOneRoles(LevelMasters), 4)
	assert.Len(t, PhaseOneRoles(LevelPhD), 3)
	assert.NotContains(t, PhaseOneRoles(LevelPhD), RoleDormitory)
}

func TestNextRoleChain(t *testing.T) {
	next, ok := NextRole(RoleLibrarian)
	assert.True(t, ok)
	assert.Equal(t, RoleSport, next)

	next, ok = NextRole(RoleSport)
	assert.True(t, ok)
	assert.Equal(t, RoleStudentAffair, next)

	next, ok = NextRole(RoleStudentAffair)
	assert.True(t, ok)
	assert.Equal(t, RoleRegistrar, next)

	_, ok = NextRole(RoleRegistrar)
	assert.False(t, ok)
}
