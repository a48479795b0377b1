package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	"lcs-classroom/backend/pkg/metrics"
)

// newSQLiteRepository 基于内存 SQLite 的真实 Repository，事务路径与生产一致
func newSQLiteRepository(t *testing.T) *repository.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.User{}, &model.Class{}, &model.Video{}, &model.Enrollment{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return repository.NewRepository(db)
}

// 并发的删除课程与申请选课：要么删除成功且没有选课记录，要么删除被拒且选课记录存在
func TestClassDelete_ConcurrentWithEnrollment(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	log := zap.NewNop()
	classSvc := NewClassService(repo, NewAccessGate(repo, nil, log), log)
	enrollSvc := NewEnrollmentService(repo, nil, metrics.New(), log)

	student := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: model.RoleStudent}
	if err := repo.User.Create(ctx, student); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	for i := 0; i < 20; i++ {
		class := &model.Class{Name: "Algebra", Subject: "Math", Date: "2023-01-15", Time: "10:00 AM"}
		if err := repo.Class.Create(ctx, class); err != nil {
			t.Fatalf("创建课程失败: %v", err)
		}

		var (
			wg        sync.WaitGroup
			deleteErr error
			enrollErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = classSvc.Delete(ctx, class.ClassID, "admin-1")
		}()
		go func() {
			defer wg.Done()
			_, enrollErr = enrollSvc.RequestEnrollment(ctx, student.UserID, class.ClassID)
		}()
		wg.Wait()

		count, err := repo.Enrollment.CountByClass(ctx, class.ClassID)
		if err != nil {
			t.Fatalf("统计选课记录失败: %v", err)
		}
		_, getErr := repo.Class.GetByID(ctx, class.ClassID)

		switch {
		case deleteErr == nil:
			if !errors.Is(getErr, gorm.ErrRecordNotFound) {
				t.Errorf("第 %d 轮: 删除成功但课程仍可查询", i)
			}
			if count != 0 || !errors.Is(enrollErr, ErrClassNotFound) {
				t.Errorf("第 %d 轮: 已删除课程上存在选课记录 count=%d enrollErr=%v", i, count, enrollErr)
			}
		case errors.Is(deleteErr, ErrClassHasEnrollments):
			if enrollErr != nil || count != 1 || getErr != nil {
				t.Errorf("第 %d 轮: 删除被拒但状态不一致 count=%d enrollErr=%v getErr=%v", i, count, enrollErr, getErr)
			}
		default:
			t.Fatalf("第 %d 轮: 删除出现意外错误 %v", i, deleteErr)
		}
	}
}
