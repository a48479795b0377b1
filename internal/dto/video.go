package dto

// ── 视频模块 DTO ──

// CreateVideoRequest 添加课程视频请求
// VideoRef 接受 YouTube 视频 ID 或完整链接，服务层统一归一化为 ID
type CreateVideoRequest struct {
	Title       string `json:"title"       binding:"required,max=200"`
	VideoRef    string `json:"video_ref"   binding:"required,video_ref"`
	Date        string `json:"date"        binding:"required,class_date"`
	Time        string `json:"time"        binding:"required,class_time"`
	Subject     string `json:"subject"     binding:"required,max=100"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Duration    string `json:"duration"    binding:"omitempty,max=16"`
}

// VideoResponse 视频信息响应
type VideoResponse struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	Title       string `json:"title"`
	VideoRef    string `json:"video_ref"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
}
