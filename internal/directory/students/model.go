package students

import "time"

const DefaultStudentType = "new"

// Student: 電話番号が同一性キー
type Student struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       *string   `json:"email"`
	Phone       string    `json:"phone"`
	Level       *string   `json:"level"`
	StudentType string    `json:"student_type"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch: nil のフィールドは触らない
type Patch struct {
	Name        *string
	Email       *string
	Phone       *string
	Level       *string
	StudentType *string
	Notes       *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Level == nil && p.StudentType == nil && p.Notes == nil
}

// BorrowedMaterial: 未返却（borrowed/overdue）の明細
type BorrowedMaterial struct {
	RecordID     string    `json:"record_id"`
	EnrollmentID string    `json:"enrollment_id"`
	MaterialID   string    `json:"material_id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	IssuedDate   time.Time `json:"issued_date"`
	DueDate      time.Time `json:"due_date"`
}

// RecordSummary: 学生詳細に付ける貸出履歴
type RecordSummary struct {
	RecordID     string     `json:"record_id"`
	EnrollmentID string     `json:"enrollment_id"`
	MaterialID   string     `json:"material_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	IssuedDate   time.Time  `json:"issued_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Filter struct {
	Level       string
	StudentType string
	Search      string
}
