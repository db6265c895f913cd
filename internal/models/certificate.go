package models

import "time"

// Certificate records an issued clearance certificate. The PDF bytes live in
// file storage; this row keys them by (request, student).
type Certificate struct {
	ID        string    `db:"id" json:"id"`
	RequestID string    `db:"request_id" json:"request_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	FilePath  string    `db:"file_path" json:"file_path"`
	Serial    string    `db:"serial" json:"serial"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
