package dto

// ── 选课模块 DTO ──

// CreateEnrollmentRequest 申请选课请求
type CreateEnrollmentRequest struct {
	ClassID string `json:"class_id" binding:"required,uuid"`
}

// UpdateEnrollmentStatusRequest 审核选课请求（管理员）
type UpdateEnrollmentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected"`
}

// EnrollmentResponse 选课记录响应
type EnrollmentResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ClassID    string `json:"class_id"`
	Status     string `json:"status"`
	EnrollDate string `json:"enroll_date"`
	UpdatedAt  string `json:"updated_at"`
}

// UserEnrollmentResponse 用户视角的选课记录（GET /enrollments/me）
type UserEnrollmentResponse struct {
	ClassID    string `json:"class_id"`
	ClassName  string `json:"class_name"`
	Status     string `json:"status"`
	EnrollDate string `json:"enroll_date"`
}

// ClassEnrollmentResponse 课程视角的选课记录（管理员）
type ClassEnrollmentResponse struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	EnrollDate string `json:"enroll_date"`
}

// EnrollmentStatusResponse 单个 (用户, 课程) 的选课状态，未选时 Status 为 null
type EnrollmentStatusResponse struct {
	UserID  string  `json:"user_id"`
	ClassID string  `json:"class_id"`
	Status  *string `json:"status"`
}
