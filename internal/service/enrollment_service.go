package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	pkgerrors "lcs-classroom/backend/pkg/errors"
	"lcs-classroom/backend/pkg/mail"
	"lcs-classroom/backend/pkg/metrics"
)

// ── 选课模块业务错误 ──

var (
	ErrAlreadyEnrolled    = errors.New("已申请过该课程")
	ErrEnrollmentNotFound = errors.New("选课记录不存在")
	ErrNotAuthorized      = errors.New("无权执行该操作")
	ErrInvalidStatus      = errors.New("选课状态无效")
)

const notifyTimeout = 30 * time.Second

// EnrollmentService 选课业务接口
//
// 状态机：
//
//	(无记录) --RequestEnrollment--> pending
//	pending / approved / rejected --UpdateStatus(admin)--> 任意状态
//
// 每个 (用户, 课程) 至多一条记录，由唯一索引保证；记录不做删除
type EnrollmentService interface {
	RequestEnrollment(ctx context.Context, userID, classID string) (*dto.EnrollmentResponse, error)
	UpdateStatus(ctx context.Context, callerID, callerRole, userID, classID, status string) (*dto.EnrollmentResponse, error)
	// GetStatus 本人或管理员可查询，未选课时 Status 为 nil
	GetStatus(ctx context.Context, callerID, callerRole, userID, classID string) (*dto.EnrollmentStatusResponse, error)
	ListForUser(ctx context.Context, userID string) ([]dto.UserEnrollmentResponse, error)
	ListForClass(ctx context.Context, callerRole, classID string) ([]dto.ClassEnrollmentResponse, error)
	// ListEnrolledClasses 返回已通过审核的课程
	ListEnrolledClasses(ctx context.Context, userID string) ([]dto.ClassResponse, error)
	// WaitNotifications 等待已派发的通知邮件发送完毕，ctx 到期时返回 ctx.Err()
	WaitNotifications(ctx context.Context) error
}

type enrollmentService struct {
	repo    *repository.Repository
	mailer  mail.Sender
	metrics *metrics.Metrics
	logger  *zap.Logger

	// notifying 跟踪后台发送中的通知邮件，停机时由 WaitNotifications 等待
	notifying sync.WaitGroup
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(repo *repository.Repository, mailer mail.Sender, m *metrics.Metrics, logger *zap.Logger) EnrollmentService {
	return &enrollmentService{repo: repo, mailer: mailer, metrics: m, logger: logger}
}

// ────────────────────── RequestEnrollment ──────────────────────

func (s *enrollmentService) RequestEnrollment(ctx context.Context, userID, classID string) (*dto.EnrollmentResponse, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		s.metrics.EnrollmentRequested("error")
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	enrollment, outcome, err := s.createEnrollment(ctx, s.repo.WithTx(tx), userID, classID)
	if err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.metrics.EnrollmentRequested(outcome)
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			if pkgerrors.IsDuplicateKey(err) {
				s.metrics.EnrollmentRequested("duplicate")
				return nil, ErrAlreadyEnrolled
			}
			s.logger.Error("提交事务失败", zap.Error(err))
			s.metrics.EnrollmentRequested("error")
			return nil, err
		}
	}

	s.metrics.EnrollmentRequested("created")
	s.logger.Info("选课申请已提交", zap.String("user_id", userID), zap.String("class_id", classID))
	resp := toEnrollmentResponse(enrollment)
	return &resp, nil
}

// createEnrollment 在事务内完成校验与插入，返回失败时的指标标签
// 课程行以 FOR SHARE 锁定，与 ClassService.Delete 的 FOR UPDATE 互斥：已删除的课程不会再产生选课记录
func (s *enrollmentService) createEnrollment(ctx context.Context, repo *repository.Repository, userID, classID string) (*model.Enrollment, string, error) {
	if _, err := repo.Class.GetByIDLocked(ctx, classID, clause.LockingStrengthShare); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "not_found", ErrClassNotFound
		}
		s.logger.Error("查询课程失败", zap.String("class_id", classID), zap.Error(err))
		return nil, "error", err
	}

	// 任意状态的已有记录都视为重复（被拒绝后不可再次申请）
	if _, err := repo.Enrollment.GetByUserAndClass(ctx, userID, classID); err == nil {
		return nil, "duplicate", ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询选课记录失败", zap.Error(err))
		return nil, "error", err
	}

	enrollment := &model.Enrollment{
		UserID:  userID,
		ClassID: classID,
		Status:  model.EnrollmentPending,
	}
	enrollment.CreatedBy = &userID
	enrollment.UpdatedBy = &userID

	if err := repo.Enrollment.Create(ctx, enrollment); err != nil {
		// 并发请求中落败的一方
		if pkgerrors.IsDuplicateKey(err) {
			return nil, "duplicate", ErrAlreadyEnrolled
		}
		s.logger.Error("创建选课记录失败", zap.Error(err))
		return nil, "error", err
	}
	return enrollment, "", nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *enrollmentService) UpdateStatus(ctx context.Context, callerID, callerRole, userID, classID, status string) (*dto.EnrollmentResponse, error) {
	if callerRole != model.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	if !model.IsValidEnrollmentStatus(status) {
		return nil, ErrInvalidStatus
	}

	if err := s.repo.Enrollment.UpdateStatus(ctx, userID, classID, status, callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("更新选课状态失败", zap.String("user_id", userID), zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	enrollment, err := s.repo.Enrollment.GetByUserAndClass(ctx, userID, classID)
	if err != nil {
		s.logger.Error("查询选课记录失败", zap.Error(err))
		return nil, err
	}

	s.metrics.EnrollmentStatusChanged(status)
	s.logger.Info("选课状态已更新",
		zap.String("user_id", userID),
		zap.String("class_id", classID),
		zap.String("status", status),
		zap.String("by", callerID),
	)

	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		s.notifyStatusChange(userID, classID, status)
	}()

	resp := toEnrollmentResponse(enrollment)
	return &resp, nil
}

// notifyStatusChange 邮件通知用户审核结果，失败只记录日志
func (s *enrollmentService) notifyStatusChange(userID, classID, status string) {
	if s.mailer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("通知邮件: 查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		s.logger.Warn("通知邮件: 查询课程失败", zap.String("class_id", classID), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("选课状态更新：%s", class.Name)
	body := fmt.Sprintf("<p>%s 你好，</p><p>你在课程 <b>%s</b> 的选课状态已更新为 <b>%s</b>。</p>",
		html.EscapeString(user.Username), html.EscapeString(class.Name), statusLabel(status))

	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Warn("发送选课通知失败", zap.String("to", user.Email), zap.Error(err))
	}
}

func (s *enrollmentService) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifying.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusLabel(status string) string {
	switch status {
	case model.EnrollmentApproved:
		return "已通过"
	case model.EnrollmentRejected:
		return "已拒绝"
	default:
		return "待审核"
	}
}

// ────────────────────── GetStatus ──────────────────────

func (s *enrollmentService) GetStatus(ctx context.Context, callerID, callerRole, userID, classID string) (*dto.EnrollmentStatusResponse, error) {
	if callerID != userID && callerRole != model.RoleAdmin {
		return nil, ErrNotAuthorized
	}

	resp := &dto.EnrollmentStatusResponse{UserID: userID, ClassID: classID}
	enrollment, err := s.repo.Enrollment.GetByUserAndClass(ctx, userID, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		s.logger.Error("查询选课记录失败", zap.Error(err))
		return nil, err
	}
	resp.Status = lo.ToPtr(enrollment.Status)
	return resp, nil
}

// ────────────────────── ListForUser ──────────────────────

func (s *enrollmentService) ListForUser(ctx context.Context, userID string) ([]dto.UserEnrollmentResponse, error) {
	enrollments, err := s.repo.Enrollment.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询用户选课失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return lo.Map(enrollments, func(e model.Enrollment, _ int) dto.UserEnrollmentResponse {
		item := dto.UserEnrollmentResponse{
			ClassID:    e.ClassID,
			Status:     e.Status,
			EnrollDate: e.CreatedAt.Format(time.RFC3339),
		}
		if e.Class != nil {
			item.ClassName = e.Class.Name
		}
		return item
	}), nil
}

// ────────────────────── ListForClass ──────────────────────

func (s *enrollmentService) ListForClass(ctx context.Context, callerRole, classID string) ([]dto.ClassEnrollmentResponse, error) {
	if callerRole != model.RoleAdmin {
		return nil, ErrNotAuthorized
	}
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询课程失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	enrollments, err := s.repo.Enrollment.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询课程选课失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	return lo.Map(enrollments, func(e model.Enrollment, _ int) dto.ClassEnrollmentResponse {
		item := dto.ClassEnrollmentResponse{
			UserID:     e.UserID,
			Status:     e.Status,
			EnrollDate: e.CreatedAt.Format(time.RFC3339),
		}
		if e.User != nil {
			item.Username = e.User.Username
			item.Email = e.User.Email
		}
		return item
	}), nil
}

// ────────────────────── ListEnrolledClasses ──────────────────────

func (s *enrollmentService) ListEnrolledClasses(ctx context.Context, userID string) ([]dto.ClassResponse, error) {
	ids, err := s.repo.Enrollment.ListApprovedClassIDs(ctx, userID)
	if err != nil {
		s.logger.Error("查询已通过课程失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if len(ids) == 0 {
		return []dto.ClassResponse{}, nil
	}

	classes, err := s.repo.Class.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}

	return lo.Map(classes, func(c model.Class, _ int) dto.ClassResponse {
		return toClassResponse(&c)
	}), nil
}

func toEnrollmentResponse(e *model.Enrollment) dto.EnrollmentResponse {
	return dto.EnrollmentResponse{
		ID:         e.EnrollmentID,
		UserID:     e.UserID,
		ClassID:    e.ClassID,
		Status:     e.Status,
		EnrollDate: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
	}
}
