package students

type CreateStudentRequest struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Phone       string  `json:"phone" binding:"required,vnphone"`
	Level       string  `json:"level" binding:"required"`
	StudentType string  `json:"student_type" binding:"required"`
	Notes       *string `json:"notes,omitempty"`
}

type UpdateStudentRequest struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Level       *string `json:"level,omitempty"`
	StudentType *string `json:"student_type,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

var updatableFields = []string{"name", "email", "phone", "level", "student_type", "notes"}

type CheckPhoneResponse struct {
	Student           *Student           `json:"student"`
	BorrowedMaterials []BorrowedMaterial `json:"borrowed_materials"`
}

type StudentDetail struct {
	Student
	MaterialRecords []RecordSummary `json:"material_records"`
}
