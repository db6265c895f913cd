package models

import "time"

// ApprovalStatus is the state of a single approval record, and by extension
// the derived overall state of a request.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	// StatusSkipped is display-only: a doctoral student's dormitory slot.
	StatusSkipped ApprovalStatus = "skipped"
)

// Decided reports whether the status is a decision an approver can submit.
func (s ApprovalStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// ApprovalRecord is one approver's slot on a request. Rows are created phase
// by phase and transition in place; they are never deleted.
type ApprovalRecord struct {
	ID         string         `db:"id" json:"id"`
	RequestID  string         `db:"request_id" json:"request_id"`
	ApproverID string         `db:"approver_id" json:"approver_id"`
	Status     ApprovalStatus `db:"status" json:"status"`
	Comment    string         `db:"comment" json:"comment,omitempty"`
	DecidedAt  *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ApprovalDetail joins an approval record with its approver's workflow role.
type ApprovalDetail struct {
	ApprovalRecord
	Role         GeneralRole `db:"general_role" json:"general_role"`
	SpecificRole *string     `db:"specific_role" json:"specific_role,omitempty"`
}

// RequestStatus is the derived aggregate over a request's approval records.
// It is computed on demand and never stored.
type RequestStatus struct {
	RequestID     string                         `json:"request_id"`
	StudentID     string                         `json:"student_id"`
	ClearanceType string                         `json:"clearance_type,omitempty"`
	Overall       ApprovalStatus                 `json:"overall_status"`
	TotalRequired int                            `json:"total_required"`
	ApprovedCount int                            `json:"approved_count"`
	RejectedCount int                            `json:"rejected_count"`
	Roles         map[GeneralRole]ApprovalStatus `json:"roles"`
	CreatedAt     time.Time                      `json:"created_at"`
	CertificateAt *time.Time                     `json:"certificate_created_at,omitempty"`
}

// DeriveRequestStatus folds approval records into the aggregate for a student
// of the given study level. A required role with no record yet reads as
// pending; any rejection dominates; approval requires every required role.
func DeriveRequestStatus(level StudyLevel, details []ApprovalDetail) (ApprovalStatus, int, int, int, map[GeneralRole]ApprovalStatus) {
	required := RequiredRoles(level)

	byRole := make(map[GeneralRole]ApprovalStatus, len(details))
	approved, rejected := 0, 0
	for _, d := range details {
		byRole[d.Role] = d.Status
		switch d.Status {
		case StatusApproved:
			approved++
		case StatusRejected:
			rejected++
		}
	}

	roles := make(map[GeneralRole]ApprovalStatus, len(GeneralRoles))
	overall := StatusApproved
	for _, role := range required {
		status, ok := byRole[role]
		if !ok {
			status = StatusPending
		}
		roles[role] = status
		if status != StatusApproved && overall != StatusRejected {
			overall = StatusPending
		}
		if status == StatusRejected {
			overall = StatusRejected
		}
	}
	if level.Doctoral() {
		roles[RoleDormitory] = StatusSkipped
	}

	return overall, len(required), approved, rejected, roles
}

// PendingRequestItem is a staff queue row: a request awaiting (or already
// given) the approver's decision, with student context.
type PendingRequestItem struct {
	RequestID      string         `db:"request_id" json:"request_id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	FirstName      string         `db:"first_name" json:"first_name"`
	LastName       string         `db:"last_name" json:"last_name"`
	Email          string         `db:"email" json:"email"`
	IDNo           string         `db:"id_no" json:"id_no"`
	RoomNo         string         `db:"room_no" json:"room_no,omitempty"`
	Department     string         `db:"department_name" json:"department"`
	StudyLevel     StudyLevel     `db:"study_level" json:"study_level"`
	YearOfStudy    int            `db:"year_of_study" json:"year_of_study"`
	ClearanceType  string         `db:"clearance_type" json:"clearance_type"`
	Status         ApprovalStatus `db:"status" json:"status"`
	Comment        string         `db:"comment" json:"comment,omitempty"`
	RequestCreated time.Time      `db:"created_at" json:"created_at"`
}
