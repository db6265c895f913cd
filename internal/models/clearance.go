package models

import "time"

// ClearanceType identifies a clearance reason, e.g. "graduation".
type ClearanceType struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClearanceSchedule is the activation window during which requests of a type
// may be submitted. One schedule row exists per clearance type.
type ClearanceSchedule struct {
	ID              string    `db:"id" json:"id"`
	ClearanceTypeID string    `db:"clearance_type_id" json:"clearance_type_id"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	EndTime         time.Time `db:"end_time" json:"end_time"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Open reports whether the schedule admits submissions at the given instant.
// The window is half-open: [start, end).
func (s ClearanceSchedule) Open(at time.Time) bool {
	return s.IsActive && !at.Before(s.StartTime) && at.Before(s.EndTime)
}

// ClearanceRequest is a student's submission for a clearance type. Immutable
// after creation; its status is derived from approval records.
type ClearanceRequest struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	ClearanceTypeID string    `db:"clearance_type_id" json:"clearance_type_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// RequestOverview is a request joined with student identity and derived
// aggregate counters, used for admin listings.
type RequestOverview struct {
	RequestID     string        `db:"request_id" json:"request_id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	IDNo          string        `db:"id_no" json:"id_no"`
	FirstName     string        `db:"first_name" json:"first_name"`
	LastName      string        `db:"last_name" json:"last_name"`
	ClearanceType string        `db:"clearance_type" json:"clearance_type"`
	StudyLevel    StudyLevel    `db:"study_level" json:"study_level"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	Overall       ApprovalStatus `json:"overall_status"`
	TotalRequired int            `json:"total_required"`
	ApprovedCount int            `db:"approved_count" json:"approved_count"`
	RejectedCount int            `db:"rejected_count" json:"rejected_count"`
}

// StudentRequest is a request row in the student's own status view.
type StudentRequest struct {
	ClearanceRequest
	ClearanceType string     `db:"clearance_type" json:"clearance_type"`
	StudyLevel    StudyLevel `db:"study_level" json:"study_level"`
	CertificateAt *time.Time `db:"certificate_created_at" json:"certificate_created_at,omitempty"`
}
