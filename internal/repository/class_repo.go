package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lcs-classroom/backend/internal/model"
	pkgerrors "lcs-classroom/backend/pkg/errors"
)

// ClassListFilters 课程列表筛选条件
type ClassListFilters struct {
	Subject string
	Keyword string
}

// ClassRepository 课程数据访问接口
type ClassRepository interface {
	Create(ctx context.Context, class *model.Class) error
	GetByID(ctx context.Context, id string) (*model.Class, error)
	// GetByIDLocked 事务内加行锁读取课程，strength 取 clause.LockingStrengthUpdate / LockingStrengthShare
	GetByIDLocked(ctx context.Context, id string, strength string) (*model.Class, error)
	List(ctx context.Context, filters *ClassListFilters, offset, limit int) ([]model.Class, int64, error)
	ListAll(ctx context.Context) ([]model.Class, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Class, error)
	// Update 基于 version 的乐观锁更新，冲突时返回 pkgerrors.ErrOptimisticLock
	Update(ctx context.Context, class *model.Class) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

// classRepo ClassRepository 的 GORM 实现
type classRepo struct {
	db *gorm.DB
}

// NewClassRepo 创建 ClassRepository 实例
func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) Create(ctx context.Context, class *model.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) GetByIDLocked(ctx context.Context, id string, strength string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) List(ctx context.Context, filters *ClassListFilters, offset, limit int) ([]model.Class, int64, error) {
	var classes []model.Class
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Class{})
	if filters != nil {
		if filters.Subject != "" {
			db = db.Where("subject = ?", filters.Subject)
		}
		if filters.Keyword != "" {
			kw := "%" + filters.Keyword + "%"
			db = db.Where("name LIKE ? OR description LIKE ?", kw, kw)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("date ASC, created_at ASC").
		Find(&classes).Error; err != nil {
		return nil, 0, err
	}

	return classes, total, nil
}

func (r *classRepo) ListAll(ctx context.Context) ([]model.Class, error) {
	var classes []model.Class
	err := r.db.WithContext(ctx).
		Order("date ASC, created_at ASC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Class, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var classes []model.Class
	err := r.db.WithContext(ctx).
		Where("class_id IN ?", ids).
		Order("date ASC, created_at ASC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) Update(ctx context.Context, class *model.Class) error {
	expected := class.Version
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.Class{}).
		Where("class_id = ? AND version = ?", class.ClassID, expected).
		Updates(map[string]interface{}{
			"name":        class.Name,
			"subject":     class.Subject,
			"description": class.Description,
			"date":        class.Date,
			"time":        class.Time,
			"image_url":   class.ImageURL,
			"version":     expected + 1,
			"updated_at":  now,
			"updated_by":  class.UpdatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	class.Version = expected + 1
	class.UpdatedAt = now
	return nil
}

func (r *classRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Class{}).
		Where("class_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": time.Now(),
		}).Error
}
