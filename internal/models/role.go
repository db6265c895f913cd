package models

import "time"

// GeneralRole identifies a staff duty within the clearance workflow.
type GeneralRole string

const (
	RoleDepartmentHead GeneralRole = "department_head"
	RoleLibrarian      GeneralRole = "librarian"
	RoleCafeteria      GeneralRole = "cafeteria"
	RoleDormitory      GeneralRole = "dormitory"
	RoleSport          GeneralRole = "sport"
	RoleStudentAffair  GeneralRole = "student_affair"
	RoleRegistrar      GeneralRole = "registrar"
)

// GeneralRoles lists every workflow role in phase order.
var GeneralRoles = []GeneralRole{
	RoleDepartmentHead,
	RoleLibrarian,
	RoleCafeteria,
	RoleDormitory,
	RoleSport,
	RoleStudentAffair,
	RoleRegistrar,
}

// Valid reports whether the role is a known workflow role.
func (r GeneralRole) Valid() bool {
	for _, known := range GeneralRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Scoped reports whether the role is narrowed by a scope key (department name
// or dormitory block number) rather than held by a single principal.
func (r GeneralRole) Scoped() bool {
	return r == RoleDepartmentHead || r == RoleDormitory
}

// Phase is an ordered stage of the approval workflow. Phase one runs its
// roles in parallel, later phases are strictly sequential.
type Phase int

const (
	PhaseOne Phase = iota + 1
	PhaseTwo
	PhaseThree
	PhaseFour
)

// Phase returns the workflow stage the role belongs to.
func (r GeneralRole) Phase() Phase {
	switch r {
	case RoleSport:
		return PhaseTwo
	case RoleStudentAffair:
		return PhaseThree
	case RoleRegistrar:
		return PhaseFour
	default:
		return PhaseOne
	}
}

// PhaseOneRoles returns the parallel first-phase roles for a study level.
// Doctoral students have no dormitory obligation.
func PhaseOneRoles(level StudyLevel) []GeneralRole {
	roles := []GeneralRole{RoleDepartmentHead, RoleLibrarian, RoleCafeteria}
	if !level.Doctoral() {
		roles = append(roles, RoleDormitory)
	}
	return roles
}

// RequiredRoles returns every role whose approval is mandatory for a request
// by a student of the given level, in phase order.
func RequiredRoles(level StudyLevel) []GeneralRole {
	roles := PhaseOneRoles(level)
	return append(roles, RoleSport, RoleStudentAffair, RoleRegistrar)
}

// NextRole returns the role whose approval record is seeded once the phase
// containing r completes. The registrar is terminal.
func NextRole(r GeneralRole) (GeneralRole, bool) {
	switch r.Phase() {
	case PhaseOne:
		return RoleSport, true
	case PhaseTwo:
		return RoleStudentAffair, true
	case PhaseThree:
		return RoleRegistrar, true
	default:
		return "", false
	}
}

// StaffRole binds a user to a workflow duty, optionally narrowed by a
// specific scope (department name for department heads, block number for
// dormitory staff).
type StaffRole struct {
	ID           string      `db:"id" json:"id"`
	UserID       string      `db:"user_id" json:"user_id"`
	GeneralRole  GeneralRole `db:"general_role" json:"general_role"`
	SpecificRole *string     `db:"specific_role" json:"specific_role,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// StaffProfile is an approver's account joined with their workflow binding.
type StaffProfile struct {
	User         User        `json:"user"`
	GeneralRole  GeneralRole `json:"general_role"`
	SpecificRole *string     `json:"specific_role,omitempty"`
}

// StaffRoleDetail joins a role binding with the holder's identity.
type StaffRoleDetail struct {
	StaffRole
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
