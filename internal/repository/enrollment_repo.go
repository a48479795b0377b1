package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lcs-classroom/backend/internal/model"
)

// EnrollmentRepository 选课记录数据访问接口
type EnrollmentRepository interface {
	// Create 插入选课记录；(user_id, class_id) 重复时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, enrollment *model.Enrollment) error
	GetByUserAndClass(ctx context.Context, userID, classID string) (*model.Enrollment, error)
	// UpdateStatus 记录不存在时返回 gorm.ErrRecordNotFound
	UpdateStatus(ctx context.Context, userID, classID, status, updatedBy string) error
	ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error)
	ListByClass(ctx context.Context, classID string) ([]model.Enrollment, error)
	CountByClass(ctx context.Context, classID string) (int64, error)
	ListApprovedClassIDs(ctx context.Context, userID string) ([]string, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepo) GetByUserAndClass(ctx context.Context, userID, classID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND class_id = ?", userID, classID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) UpdateStatus(ctx context.Context, userID, classID, status, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("user_id = ? AND class_id = ?", userID, classID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": updatedBy,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *enrollmentRepo) ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Class").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepo) ListByClass(ctx context.Context, classID string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("class_id = ?", classID).
		Order("created_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepo) CountByClass(ctx context.Context, classID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("class_id = ?", classID).
		Count(&count).Error
	return count, err
}

func (r *enrollmentRepo) ListApprovedClassIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, model.EnrollmentApproved).
		Order("created_at ASC").
		Pluck("class_id", &ids).Error
	return ids, err
}
