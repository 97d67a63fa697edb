package records

import (
	"time"

	"hcsc-backend/internal/lending"
	"hcsc-backend/internal/lending/enrollments"
)

type Record = enrollments.Record

// Row: 一覧用。教材名と学生情報を付ける
type Row struct {
	Record
	Title        string    `json:"title"`
	StudentPhone string    `json:"student_phone"`
	StudentName  *string   `json:"student_name"`
	IssuedDate   time.Time `json:"issued_date"`
	DueDate      time.Time `json:"due_date"`
}

type Filter struct {
	Status lending.Status
	From   *time.Time
	To     *time.Time
}

// POST /material-records
type CreateRecordRequest struct {
	EnrollmentID string `json:"enrollment_id" binding:"required"`
	MaterialID   string `json:"material_id" binding:"required"`
}

// PUT /material-records/:id
type UpdateRecordRequest struct {
	Status     lending.Status `json:"status" binding:"required"`
	ReturnDate *string        `json:"return_date"`
}
