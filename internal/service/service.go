package service

import (
	"context"

	"go.uber.org/zap"

	"lcs-classroom/backend/config"
	"lcs-classroom/backend/internal/repository"
	"lcs-classroom/backend/pkg/jwt"
	"lcs-classroom/backend/pkg/mail"
	"lcs-classroom/backend/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Gate       AccessGate
	Class      ClassService
	Video      VideoService
	Enrollment EnrollmentService
	Export     ExportService
	Calendar   CalendarService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	mailer mail.Sender,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	gate := NewAccessGate(repo, m, logger)
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		Gate:       gate,
		Class:      NewClassService(repo, gate, logger),
		Video:      NewVideoService(repo, gate, logger),
		Enrollment: NewEnrollmentService(repo, mailer, m, logger),
		Export:     NewExportService(repo, logger),
		Calendar:   NewCalendarService(cfg, repo, logger),
	}
}

// Shutdown 等待后台派发的通知邮件发送完毕，须在 HTTP 服务停止接收请求之后调用
func (s *Service) Shutdown(ctx context.Context) error {
	return s.Enrollment.WaitNotifications(ctx)
}
