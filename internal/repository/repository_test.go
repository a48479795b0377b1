package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	pkgerrors "lcs-classroom/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

// newTestDB 每个用例独立的内存库；单连接保证所有语句落在同一个 :memory: 实例上
func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func seedUser(t *testing.T, repo *repository.Repository, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         model.RoleStudent,
	}
	if err := repo.User.Create(context.Background(), u); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return u
}

func seedClass(t *testing.T, repo *repository.Repository, name string) *model.Class {
	t.Helper()
	c := &model.Class{
		Name:    name,
		Subject: "Math",
		Date:    "2023-01-15",
		Time:    "10:00 AM",
	}
	if err := repo.Class.Create(context.Background(), c); err != nil {
		t.Fatalf("创建课程失败: %v", err)
	}
	return c
}

// ═══════════════════════════════════════════════════════════
// UserRepo
// ═══════════════════════════════════════════════════════════

func TestUserRepo_CreateAndLookup(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()

	u := seedUser(t, repo, "alice")
	if u.UserID == "" {
		t.Fatal("创建后应生成 UserID")
	}

	got, err := repo.User.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail 失败: %v", err)
	}
	if got.UserID != u.UserID {
		t.Errorf("期望 %s，实际 %s", u.UserID, got.UserID)
	}

	if _, err := repo.User.GetByEmailOrUsername(ctx, "other@example.com", "alice"); err != nil {
		t.Errorf("按用户名应命中: %v", err)
	}

	_, err = repo.User.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际 %v", err)
	}
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	seedUser(t, repo, "alice")

	dup := &model.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "hash", Role: model.RoleStudent}
	err := repo.User.Create(context.Background(), dup)
	if !pkgerrors.IsDuplicateKey(err) {
		t.Errorf("期望唯一约束冲突，实际 %v", err)
	}
}

func TestUserRepo_ListFilters(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")
	admin := &model.User{Username: "root", Email: "root@example.com", PasswordHash: "hash", Role: model.RoleAdmin}
	if err := repo.User.Create(ctx, admin); err != nil {
		t.Fatalf("创建管理员失败: %v", err)
	}

	users, total, err := repo.User.List(ctx, &repository.UserListFilters{Role: model.RoleStudent}, 0, 10)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Errorf("期望 2 个学生，实际 total=%d len=%d", total, len(users))
	}

	_, total, _ = repo.User.List(ctx, &repository.UserListFilters{Keyword: "bo"}, 0, 10)
	if total != 1 {
		t.Errorf("关键字过滤期望 1，实际 %d", total)
	}
}

// ═══════════════════════════════════════════════════════════
// ClassRepo
// ═══════════════════════════════════════════════════════════

func TestClassRepo_OptimisticLock(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedClass(t, repo, "Algebra")

	if c.Version != 1 {
		t.Fatalf("新课程版本应为 1，实际 %d", c.Version)
	}

	first, _ := repo.Class.GetByID(ctx, c.ClassID)
	stale, _ := repo.Class.GetByID(ctx, c.ClassID)

	first.Name = "Algebra I"
	if err := repo.Class.Update(ctx, first); err != nil {
		t.Fatalf("首次更新失败: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("更新后版本应为 2，实际 %d", first.Version)
	}

	stale.Name = "Algebra II"
	if err := repo.Class.Update(ctx, stale); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("过期版本期望 ErrOptimisticLock，实际 %v", err)
	}

	got, _ := repo.Class.GetByID(ctx, c.ClassID)
	if got.Name != "Algebra I" {
		t.Errorf("期望保留首次更新，实际 %s", got.Name)
	}
}

func TestClassRepo_SoftDelete(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedClass(t, repo, "Physics")
	seedClass(t, repo, "Chemistry")

	if err := repo.Class.Delete(ctx, c.ClassID, "admin"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := repo.Class.GetByID(ctx, c.ClassID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("软删除后应查不到，实际 %v", err)
	}

	all, err := repo.Class.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll 失败: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Chemistry" {
		t.Errorf("期望仅剩 Chemistry，实际 %+v", all)
	}
}

func TestClassRepo_GetByIDLocked(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedClass(t, repo, "Biology")

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)
	for _, strength := range []string{clause.LockingStrengthUpdate, clause.LockingStrengthShare} {
		got, err := txRepo.Class.GetByIDLocked(ctx, c.ClassID, strength)
		if err != nil {
			t.Fatalf("FOR %s 读取失败: %v", strength, err)
		}
		if got.Name != "Biology" {
			t.Errorf("期望 Biology，实际 %s", got.Name)
		}
	}
	if err := txRepo.Class.Delete(ctx, c.ClassID, "admin"); err != nil {
		t.Fatalf("事务内删除失败: %v", err)
	}
	if _, err := txRepo.Class.GetByIDLocked(ctx, c.ClassID, clause.LockingStrengthShare); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("软删除后加锁读取应查不到，实际 %v", err)
	}
	tx.Rollback()
}

// ═══════════════════════════════════════════════════════════
// VideoRepo
// ═══════════════════════════════════════════════════════════

func TestVideoRepo_DeleteByClass(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedClass(t, repo, "Biology")

	for i := 0; i < 3; i++ {
		v := &model.Video{
			ClassID:  c.ClassID,
			Title:    fmt.Sprintf("Lecture %d", i+1),
			VideoRef: "dQw4w9WgXcQ",
			Date:     "2023-01-15",
			Time:     "10:00 AM",
			Subject:  "Biology",
		}
		if err := repo.Video.Create(ctx, v); err != nil {
			t.Fatalf("创建视频失败: %v", err)
		}
	}

	videos, _ := repo.Video.ListByClass(ctx, c.ClassID)
	if len(videos) != 3 {
		t.Fatalf("期望 3 个视频，实际 %d", len(videos))
	}

	if err := repo.Video.Delete(ctx, videos[0].VideoID, "admin"); err != nil {
		t.Fatalf("删除视频失败: %v", err)
	}
	if err := repo.Video.Delete(ctx, videos[0].VideoID, "admin"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("重复删除期望 ErrRecordNotFound，实际 %v", err)
	}

	if err := repo.Video.DeleteByClass(ctx, c.ClassID, "admin"); err != nil {
		t.Fatalf("DeleteByClass 失败: %v", err)
	}
	videos, _ = repo.Video.ListByClass(ctx, c.ClassID)
	if len(videos) != 0 {
		t.Errorf("期望视频全部删除，实际 %d", len(videos))
	}
}

// ═══════════════════════════════════════════════════════════
// EnrollmentRepo
// ═══════════════════════════════════════════════════════════

func TestEnrollmentRepo_Lifecycle(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	u := seedUser(t, repo, "alice")
	c1 := seedClass(t, repo, "Algebra")
	c2 := seedClass(t, repo, "Geometry")

	for _, c := range []*model.Class{c1, c2} {
		if err := repo.Enrollment.Create(ctx, &model.Enrollment{UserID: u.UserID, ClassID: c.ClassID, Status: model.EnrollmentPending}); err != nil {
			t.Fatalf("创建选课失败: %v", err)
		}
	}

	ids, _ := repo.Enrollment.ListApprovedClassIDs(ctx, u.UserID)
	if len(ids) != 0 {
		t.Errorf("未审批前不应有已通过课程，实际 %v", ids)
	}

	if err := repo.Enrollment.UpdateStatus(ctx, u.UserID, c1.ClassID, model.EnrollmentApproved, "admin"); err != nil {
		t.Fatalf("UpdateStatus 失败: %v", err)
	}
	ids, _ = repo.Enrollment.ListApprovedClassIDs(ctx, u.UserID)
	if len(ids) != 1 || ids[0] != c1.ClassID {
		t.Errorf("期望仅 %s 已通过，实际 %v", c1.ClassID, ids)
	}

	err := repo.Enrollment.UpdateStatus(ctx, u.UserID, "00000000-0000-0000-0000-000000000000", model.EnrollmentApproved, "admin")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际 %v", err)
	}

	mine, _ := repo.Enrollment.ListByUser(ctx, u.UserID)
	if len(mine) != 2 || mine[0].Class == nil {
		t.Errorf("ListByUser 应预加载课程，实际 %+v", mine)
	}

	roster, _ := repo.Enrollment.ListByClass(ctx, c1.ClassID)
	if len(roster) != 1 || roster[0].User == nil || roster[0].User.Username != "alice" {
		t.Errorf("ListByClass 应预加载用户，实际 %+v", roster)
	}

	n, _ := repo.Enrollment.CountByClass(ctx, c2.ClassID)
	if n != 1 {
		t.Errorf("期望 1 条选课，实际 %d", n)
	}
}

func TestEnrollmentRepo_ConcurrentDuplicate(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	u := seedUser(t, repo, "alice")
	c := seedClass(t, repo, "Algebra")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dups      int
		others    []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Enrollment.Create(ctx, &model.Enrollment{UserID: u.UserID, ClassID: c.ClassID, Status: model.EnrollmentPending})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsDuplicateKey(err):
				dups++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("期望恰好 1 次成功，实际 %d", succeeded)
	}
	if dups != workers-1 {
		t.Errorf("期望 %d 次重复冲突，实际 %d (其他错误: %v)", workers-1, dups, others)
	}

	n, _ := repo.Enrollment.CountByClass(ctx, c.ClassID)
	if n != 1 {
		t.Errorf("期望仅 1 条记录，实际 %d", n)
	}
}

// ═══════════════════════════════════════════════════════════
// Transaction
// ═══════════════════════════════════════════════════════════

func TestRepository_TxRollback(t *testing.T) {
	repo := repository.NewRepository(newTestDB(t))
	ctx := context.Background()
	c := seedClass(t, repo, "History")

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)
	if err := txRepo.Class.Delete(ctx, c.ClassID, "admin"); err != nil {
		t.Fatalf("事务内删除失败: %v", err)
	}
	tx.Rollback()

	if _, err := repo.Class.GetByID(ctx, c.ClassID); err != nil {
		t.Errorf("回滚后课程应仍存在: %v", err)
	}
}

func TestRepository_BeginTxWithoutDB(t *testing.T) {
	repo := &repository.Repository{}
	tx, err := repo.BeginTx(context.Background())
	if err != nil || tx != nil {
		t.Errorf("无 db 时应返回 nil 事务，实际 tx=%v err=%v", tx, err)
	}
	if repo.WithTx(nil) != repo {
		t.Error("WithTx(nil) 应返回原 Repository")
	}
}
