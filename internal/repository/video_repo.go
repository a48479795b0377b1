package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lcs-classroom/backend/internal/model"
)

// VideoRepository 课程视频数据访问接口
type VideoRepository interface {
	Create(ctx context.Context, video *model.Video) error
	GetByID(ctx context.Context, id string) (*model.Video, error)
	ListByClass(ctx context.Context, classID string) ([]model.Video, error)
	Delete(ctx context.Context, id string, deletedBy string) error
	DeleteByClass(ctx context.Context, classID string, deletedBy string) error
}

type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepo 创建 VideoRepository 实例
func NewVideoRepo(db *gorm.DB) VideoRepository {
	return &videoRepo{db: db}
}

func (r *videoRepo) Create(ctx context.Context, video *model.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

func (r *videoRepo) GetByID(ctx context.Context, id string) (*model.Video, error) {
	var video model.Video
	err := r.db.WithContext(ctx).
		Where("video_id = ?", id).
		First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) ListByClass(ctx context.Context, classID string) ([]model.Video, error) {
	var videos []model.Video
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("date ASC, created_at ASC").
		Find(&videos).Error
	return videos, err
}

func (r *videoRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("video_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByClass 软删除课程下全部视频，课程删除时在同一事务内调用
func (r *videoRepo) DeleteByClass(ctx context.Context, classID string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("class_id = ?", classID).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": time.Now(),
		}).Error
}
