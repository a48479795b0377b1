package handler

import "lcs-classroom/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Class      *ClassHandler
	Video      *VideoHandler
	Enrollment *EnrollmentHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User),
		Class:      NewClassHandler(svc.Class, svc.Enrollment),
		Video:      NewVideoHandler(svc.Video),
		Enrollment: NewEnrollmentHandler(svc.Enrollment),
		Export:     NewExportHandler(svc.Export, svc.Calendar),
	}
}
