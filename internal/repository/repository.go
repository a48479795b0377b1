package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User       UserRepository
	Class      ClassRepository
	Video      VideoRepository
	Enrollment EnrollmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Class:      NewClassRepo(db),
		Video:      NewVideoRepo(db),
		Enrollment: NewEnrollmentRepo(db),
	}
}

// BeginTx 开启事务
// 单元测试中以 mock 组装的 Repository 没有 db，此时返回 nil 事务，调用方按非事务执行
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{
		db:         tx,
		User:       NewUserRepo(tx),
		Class:      NewClassRepo(tx),
		Video:      NewVideoRepo(tx),
		Enrollment: NewEnrollmentRepo(tx),
	}
}
