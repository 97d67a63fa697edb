package enrollments

import "time"

// EnrollmentRequest: POST /enrollment の共通ボディ。type で borrow/return を切り替える
type EnrollmentRequest struct {
	Type         string   `json:"type"`
	StudentName  string   `json:"student_name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Level        string   `json:"level"`
	Purpose      string   `json:"purpose"`
	SalesStaffID string   `json:"sales_staff_id"`
	MaterialIDs  []string `json:"material_ids"`
	MaterialID   string   `json:"material_id"`
	Notes        string   `json:"notes"`
}

type BorrowRequest struct {
	StudentName  string
	Email        string
	Phone        string
	Level        string
	Purpose      string
	SalesStaffID string
	MaterialIDs  []string
	Notes        string
}

type ReturnRequest struct {
	Phone      string
	MaterialID string
}

func (r EnrollmentRequest) borrow() BorrowRequest {
	return BorrowRequest{
		StudentName:  r.StudentName,
		Email:        r.Email,
		Phone:        r.Phone,
		Level:        r.Level,
		Purpose:      r.Purpose,
		SalesStaffID: r.SalesStaffID,
		MaterialIDs:  r.MaterialIDs,
		Notes:        r.Notes,
	}
}

// return は1件ずつ。material_ids[0] も受け付ける
func (r EnrollmentRequest) giveBack() ReturnRequest {
	id := r.MaterialID
	if id == "" && len(r.MaterialIDs) > 0 {
		id = r.MaterialIDs[0]
	}
	return ReturnRequest{Phone: r.Phone, MaterialID: id}
}

type BorrowResponse struct {
	EnrollmentID      string   `json:"enrollment_id"`
	StudentPhone      string   `json:"student_phone"`
	MaterialRecordIDs []string `json:"material_record_ids"`
	DueDate           string   `json:"due_date"`
	Message           string   `json:"message"`
}

type ReturnResponse struct {
	MaterialRecordID string `json:"material_record_id"`
	EnrollmentID     string `json:"enrollment_id"`
	ReturnDate       string `json:"return_date"`
	Message          string `json:"message"`
}

// PATCH /enrollments/:id
type PatchEnrollmentRequest struct {
	Notes      *string `json:"notes"`
	DueDate    *string `json:"due_date"`
	ERPUpdated *bool   `json:"erp_updated"`
}

var patchableFields = []string{"notes", "due_date", "erp_updated"}

type enrollmentPatch struct {
	Notes      *string
	DueDate    *time.Time
	ERPUpdated *bool
}

type EnrollmentDetail struct {
	Enrollment
	StudentName    *string      `json:"student_name"`
	SalesStaffName *string      `json:"sales_staff_name"`
	Records        []RecordView `json:"material_records"`
	Images         []Image      `json:"images"`
}

type ImageInput struct {
	EnrollmentID string `json:"enrollment_id" binding:"required"`
	StoragePath  string `json:"storage_path" binding:"required"`
	FileName     string `json:"file_name" binding:"required"`
	FileSize     int64  `json:"file_size" binding:"min=0"`
}
