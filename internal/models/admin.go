package models

import "time"

// CreateClearanceTypeRequest adds a new clearance type.
type CreateClearanceTypeRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// ScheduleRequest creates or replaces the activation window for a type.
type ScheduleRequest struct {
	ClearanceTypeID string    `json:"clearance_type_id" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"required"`
	IsActive        bool      `json:"is_active"`
}

// ToggleScheduleRequest flips the activation flag without touching the window.
type ToggleScheduleRequest struct {
	IsActive bool `json:"is_active"`
}

// AssignRoleRequest binds a staff account to a workflow role.
type AssignRoleRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	GeneralRole  string  `json:"general_role" validate:"required"`
	SpecificRole *string `json:"specific_role,omitempty"`
}

// DecisionRequest is a staff verdict on an assigned approval.
type DecisionRequest struct {
	Status  string `json:"status" validate:"required,oneof=approved rejected"`
	Comment string `json:"comment"`
}

// SubmitRequest opens a clearance request for the authenticated student.
type SubmitRequest struct {
	ClearanceTypeID string `json:"clearance_type_id" validate:"required"`
}
