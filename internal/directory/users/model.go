package users

import "time"

type Role string

const (
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleSales || r == RoleAdmin
}

// User: 職員（営業・管理者）
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Filter struct {
	// Role: 空なら sales、"all" なら絞り込まない
	Role   string
	Search string
}

type CreateUserRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     Role   `json:"role,omitempty"`
}

type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

var updatableFields = []string{"full_name", "email", "role", "is_active"}

type SalesStaffResponse struct {
	Staff []User `json:"staff"`
}
