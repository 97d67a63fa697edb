package enrollments

import (
	"time"

	"hcsc-backend/internal/lending"
)

// Enrollment: 1回の受付で1人の学生に渡した教材のまとまり
type Enrollment struct {
	ID           string    `json:"id"`
	StudentPhone string    `json:"student_phone"`
	SalesStaffID string    `json:"sales_staff_id"`
	IssuedDate   time.Time `json:"issued_date"`
	DueDate      time.Time `json:"due_date"`
	Notes        *string   `json:"notes"`
	ERPUpdated   bool      `json:"erp_updated"`
	CreatedAt    time.Time `json:"created_at"`
}

// Record: enrollment 内の教材1点の貸出状態
type Record struct {
	ID           string         `json:"id"`
	EnrollmentID string         `json:"enrollment_id"`
	MaterialID   string         `json:"material_id"`
	Status       lending.Status `json:"status"`
	ReturnDate   *time.Time     `json:"return_date"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RecordView: 詳細表示用（教材名付き）
type RecordView struct {
	Record
	Title string `json:"title"`
	Type  string `json:"type"`
}

type Image struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	StoragePath  string    `json:"storage_path"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
}

// 冪等キーの操作種別
const (
	opBorrow = "borrow"
	opReturn = "return"
)

type IdemEntry struct {
	Key       string
	Operation string
	RefID     string
}

type Filter struct {
	Phone        string
	SalesStaffID string
	From         *time.Time
	To           *time.Time
	ERPUpdated   *bool
}
