package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	"lcs-classroom/backend/pkg/metrics"
)

// AccessGate 课程视频访问控制
//
// 判定规则：
//   - 未登录（callerID 或 callerRole 为空）一律拒绝
//   - admin 可访问任意课程
//   - 其余用户仅当对该课程存在 approved 选课记录时可访问
//
// 每次调用都实时读取选课记录，不做缓存：审核结果在下一次请求即生效
type AccessGate interface {
	CanViewVideos(ctx context.Context, callerRole, callerID, classID string) (bool, error)
}

type accessGate struct {
	repo    *repository.Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAccessGate 创建 AccessGate 实例
func NewAccessGate(repo *repository.Repository, m *metrics.Metrics, logger *zap.Logger) AccessGate {
	return &accessGate{repo: repo, metrics: m, logger: logger}
}

func (g *accessGate) CanViewVideos(ctx context.Context, callerRole, callerID, classID string) (bool, error) {
	allowed, err := g.decide(ctx, callerRole, callerID, classID)
	if err != nil {
		return false, err
	}
	g.metrics.VideoAccessDecided(allowed)
	return allowed, nil
}

func (g *accessGate) decide(ctx context.Context, callerRole, callerID, classID string) (bool, error) {
	if callerID == "" || callerRole == "" {
		return false, nil
	}
	if callerRole == model.RoleAdmin {
		return true, nil
	}

	enrollment, err := g.repo.Enrollment.GetByUserAndClass(ctx, callerID, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		g.logger.Error("查询选课记录失败",
			zap.String("user_id", callerID), zap.String("class_id", classID), zap.Error(err))
		return false, err
	}
	return enrollment.Status == model.EnrollmentApproved, nil
}
