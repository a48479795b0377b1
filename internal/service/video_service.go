package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lcs-classroom/backend/internal/dto"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	"lcs-classroom/backend/pkg/validator"
)

// ── 视频模块业务错误 ──

var (
	ErrVideoNotFound   = errors.New("视频不存在")
	ErrInvalidVideoRef = errors.New("视频引用无效，需为 YouTube 视频 ID 或链接")
)

// VideoService 课程视频业务接口
type VideoService interface {
	Create(ctx context.Context, classID string, req *dto.CreateVideoRequest, callerID string) (*dto.VideoResponse, error)
	// ListByClass 每次调用都经过 AccessGate 判定，未通过返回 ErrNotAuthorized
	ListByClass(ctx context.Context, classID, callerID, callerRole string) ([]dto.VideoResponse, error)
	Delete(ctx context.Context, id, callerID string) error
}

type videoService struct {
	repo   *repository.Repository
	gate   AccessGate
	logger *zap.Logger
}

// NewVideoService 创建 VideoService 实例
func NewVideoService(repo *repository.Repository, gate AccessGate, logger *zap.Logger) VideoService {
	return &videoService{repo: repo, gate: gate, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *videoService) Create(ctx context.Context, classID string, req *dto.CreateVideoRequest, callerID string) (*dto.VideoResponse, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}

	ref, ok := validator.NormalizeVideoRef(req.VideoRef)
	if !ok {
		return nil, ErrInvalidVideoRef
	}

	video := &model.Video{
		ClassID:     classID,
		Title:       strings.TrimSpace(req.Title),
		VideoRef:    ref,
		Date:        strings.TrimSpace(req.Date),
		Time:        strings.TrimSpace(req.Time),
		Subject:     strings.TrimSpace(req.Subject),
		Description: req.Description,
		Duration:    req.Duration,
	}
	video.CreatedBy = &callerID
	video.UpdatedBy = &callerID

	if err := s.repo.Video.Create(ctx, video); err != nil {
		s.logger.Error("创建视频失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	resp := toVideoResponse(video)
	return &resp, nil
}

// ────────────────────── ListByClass ──────────────────────

func (s *videoService) ListByClass(ctx context.Context, classID, callerID, callerRole string) ([]dto.VideoResponse, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}

	allowed, err := s.gate.CanViewVideos(ctx, callerRole, callerID, classID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotAuthorized
	}

	videos, err := s.repo.Video.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询视频列表失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	return lo.Map(videos, func(v model.Video, _ int) dto.VideoResponse {
		return toVideoResponse(&v)
	}), nil
}

// ────────────────────── Delete ──────────────────────

func (s *videoService) Delete(ctx context.Context, id, callerID string) error {
	if err := s.repo.Video.Delete(ctx, id, callerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVideoNotFound
		}
		s.logger.Error("删除视频失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *videoService) ensureClass(ctx context.Context, classID string) error {
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		s.logger.Error("查询课程失败", zap.String("id", classID), zap.Error(err))
		return err
	}
	return nil
}

func toVideoResponse(v *model.Video) dto.VideoResponse {
	return dto.VideoResponse{
		ID:          v.VideoID,
		ClassID:     v.ClassID,
		Title:       v.Title,
		VideoRef:    v.VideoRef,
		Date:        v.Date,
		Time:        v.Time,
		Subject:     v.Subject,
		Description: v.Description,
		Duration:    v.Duration,
	}
}
