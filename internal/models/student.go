package models

import "time"

// StudyLevel classifies a student's program.
type StudyLevel string

const (
	LevelUndergraduate StudyLevel = "undergraduate"
	LevelMasters       StudyLevel = "masters"
	LevelPhD           StudyLevel = "phd"
)

// Doctoral reports whether the level waives the dormitory clearance.
func (l StudyLevel) Doctoral() bool {
	return l == LevelPhD
}

// Student represents a student profile linked to a user account.
type Student struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	IDNo         string     `db:"id_no" json:"id_no"`
	DepartmentID string     `db:"department_id" json:"department_id"`
	BlockID      *string    `db:"block_id" json:"block_id,omitempty"`
	StudyLevel   StudyLevel `db:"study_level" json:"study_level"`
	YearOfStudy  int        `db:"year_of_study" json:"year_of_study"`
	RoomNo       string     `db:"room_no" json:"room_no,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// StudentDetail joins the student with user and scope lookups. DepartmentName
// and BlockNo are the scope keys used to resolve scoped approvers.
type StudentDetail struct {
	Student
	FirstName      string  `db:"first_name" json:"first_name"`
	LastName       string  `db:"last_name" json:"last_name"`
	Email          string  `db:"email" json:"email"`
	DepartmentName string  `db:"department_name" json:"department_name"`
	BlockNo        *string `db:"block_no" json:"block_no,omitempty"`
}

// Department is a lookup entity whose name scopes department_head approvers.
type Department struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Block is a dormitory block whose number scopes dormitory approvers.
type Block struct {
	ID      string `db:"id" json:"id"`
	BlockNo string `db:"block_no" json:"block_no"`
}

// StudentOverview is the admin listing row with the derived clearance status.
type StudentOverview struct {
	StudentID       string     `db:"student_id" json:"student_id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	IDNo            string     `db:"id_no" json:"id_no"`
	DepartmentName  *string    `db:"department_name" json:"department_name,omitempty"`
	YearOfStudy     int        `db:"year_of_study" json:"year_of_study"`
	StudyLevel      StudyLevel `db:"study_level" json:"study_level"`
	ClearanceStatus string     `db:"clearance_status" json:"clearance_status"`
}
