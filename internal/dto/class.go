package dto

// ── 课程模块 DTO ──

// CreateClassRequest 创建课程请求
type CreateClassRequest struct {
	Name        string  `json:"name"        binding:"required,max=200"`
	Subject     string  `json:"subject"     binding:"required,max=100"`
	Description string  `json:"description" binding:"omitempty,max=2000"`
	Date        string  `json:"date"        binding:"required,class_date"`
	Time        string  `json:"time"        binding:"required,class_time"`
	ImageURL    *string `json:"image_url"   binding:"omitempty,url,max=500"`
}

// UpdateClassRequest 更新课程请求（Version 用于乐观锁）
type UpdateClassRequest struct {
	Name        *string `json:"name"        binding:"omitempty,max=200"`
	Subject     *string `json:"subject"     binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Date        *string `json:"date"        binding:"omitempty,class_date"`
	Time        *string `json:"time"        binding:"omitempty,class_time"`
	ImageURL    *string `json:"image_url"   binding:"omitempty,url,max=500"`
	Version     int     `json:"version"     binding:"required,min=1"`
}

// ClassListRequest 课程列表查询参数
type ClassListRequest struct {
	PaginationRequest
	Subject string `form:"subject" binding:"omitempty,max=100"`
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// ClassResponse 课程信息响应
type ClassResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	ImageURL    *string `json:"image_url,omitempty"`
	Version     int     `json:"version"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ClassDetailResponse 课程详情（附带当前用户视角）
type ClassDetailResponse struct {
	ClassResponse
	EnrollmentStatus *string `json:"enrollment_status"` // 当前用户的选课状态，未选为 null
	CanViewVideos    bool    `json:"can_view_videos"`
}
