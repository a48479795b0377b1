package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	pkgerrors "lcs-classroom/backend/pkg/errors"
)

// ── 课程模块业务错误 ──

var (
	ErrClassNotFound       = errors.New("课程不存在")
	ErrClassHasEnrollments = errors.New("该课程已有选课记录，无法删除")
)

// ClassService 课程业务接口
type ClassService interface {
	List(ctx context.Context, req *dto.ClassListRequest) ([]dto.ClassResponse, int64, error)
	// GetByID 返回课程详情，并附带调用者自身的选课状态与视频可见性
	GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.ClassDetailResponse, error)
	Create(ctx context.Context, req *dto.CreateClassRequest, callerID string) (*dto.ClassResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateClassRequest, callerID string) (*dto.ClassResponse, error)
	// Delete 存在选课记录时拒绝删除；否则在同一事务内软删除课程及其视频
	Delete(ctx context.Context, id, callerID string) error
}

type classService struct {
	repo   *repository.Repository
	gate   AccessGate
	logger *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(repo *repository.Repository, gate AccessGate, logger *zap.Logger) ClassService {
	return &classService{repo: repo, gate: gate, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *classService) List(ctx context.Context, req *dto.ClassListRequest) ([]dto.ClassResponse, int64, error) {
	filters := &repository.ClassListFilters{
		Subject: strings.TrimSpace(req.Subject),
		Keyword: strings.TrimSpace(req.Keyword),
	}

	classes, total, err := s.repo.Class.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, 0, err
	}

	return lo.Map(classes, func(c model.Class, _ int) dto.ClassResponse {
		return toClassResponse(&c)
	}), total, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *classService) GetByID(ctx context.Context, id, callerID, callerRole string) (*dto.ClassDetailResponse, error) {
	class, err := s.getClass(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &dto.ClassDetailResponse{ClassResponse: toClassResponse(class)}

	if callerID != "" {
		enrollment, err := s.repo.Enrollment.GetByUserAndClass(ctx, callerID, id)
		switch {
		case err == nil:
			detail.EnrollmentStatus = lo.ToPtr(enrollment.Status)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Error("查询选课记录失败", zap.String("class_id", id), zap.Error(err))
			return nil, err
		}
	}

	canView, err := s.gate.CanViewVideos(ctx, callerRole, callerID, id)
	if err != nil {
		return nil, err
	}
	detail.CanViewVideos = canView

	return detail, nil
}

// ────────────────────── Create ──────────────────────

func (s *classService) Create(ctx context.Context, req *dto.CreateClassRequest, callerID string) (*dto.ClassResponse, error) {
	class := &model.Class{
		Name:        strings.TrimSpace(req.Name),
		Subject:     strings.TrimSpace(req.Subject),
		Description: req.Description,
		Date:        strings.TrimSpace(req.Date),
		Time:        strings.TrimSpace(req.Time),
		ImageURL:    req.ImageURL,
	}
	class.Version = 1
	class.CreatedBy = &callerID
	class.UpdatedBy = &callerID

	if err := s.repo.Class.Create(ctx, class); err != nil {
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("课程已创建", zap.String("class_id", class.ClassID), zap.String("name", class.Name))
	resp := toClassResponse(class)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *classService) Update(ctx context.Context, id string, req *dto.UpdateClassRequest, callerID string) (*dto.ClassResponse, error) {
	class, err := s.getClass(ctx, id)
	if err != nil {
		return nil, err
	}

	// 客户端持有的版本已过期
	if class.Version != req.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	if req.Name != nil {
		class.Name = strings.TrimSpace(*req.Name)
	}
	if req.Subject != nil {
		class.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Description != nil {
		class.Description = *req.Description
	}
	if req.Date != nil {
		class.Date = strings.TrimSpace(*req.Date)
	}
	if req.Time != nil {
		class.Time = strings.TrimSpace(*req.Time)
	}
	if req.ImageURL != nil {
		class.ImageURL = req.ImageURL
	}
	class.UpdatedBy = &callerID

	if err := s.repo.Class.Update(ctx, class); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新课程失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := toClassResponse(class)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *classService) Delete(ctx context.Context, id, callerID string) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)
	rollback := func() {
		if tx != nil {
			tx.Rollback()
		}
	}

	// FOR UPDATE 与 RequestEnrollment 的 FOR SHARE 互斥，统计与软删除之间不会插入新的选课记录
	if _, err := txRepo.Class.GetByIDLocked(ctx, id, clause.LockingStrengthUpdate); err != nil {
		rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		s.logger.Error("锁定课程失败", zap.String("id", id), zap.Error(err))
		return err
	}

	count, err := txRepo.Enrollment.CountByClass(ctx, id)
	if err != nil {
		rollback()
		s.logger.Error("统计选课记录失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if count > 0 {
		rollback()
		return ErrClassHasEnrollments
	}

	if err := txRepo.Video.DeleteByClass(ctx, id, callerID); err != nil {
		rollback()
		s.logger.Error("删除课程视频失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if err := txRepo.Class.Delete(ctx, id, callerID); err != nil {
		rollback()
		s.logger.Error("删除课程失败", zap.String("id", id), zap.Error(err))
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}

	s.logger.Info("课程已删除", zap.String("class_id", id), zap.String("by", callerID))
	return nil
}

// ────────────────────── helpers ──────────────────────

func (s *classService) getClass(ctx context.Context, id string) (*model.Class, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return class, nil
}

func toClassResponse(c *model.Class) dto.ClassResponse {
	return dto.ClassResponse{
		ID:          c.ClassID,
		Name:        c.Name,
		Subject:     c.Subject,
		Description: c.Description,
		Date:        c.Date,
		Time:        c.Time,
		ImageURL:    c.ImageURL,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}
