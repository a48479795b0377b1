package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
	pkgerrors "lcs-classroom/backend/pkg/errors"
)

// 通知邮件在独立 goroutine 中读取仓储，mock 均需加锁

var errStoreDown = errors.New("store unavailable")

// mockClock 为 mock 记录生成单调递增的创建时间，保证排序稳定
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Date(2023, 1, 1, 8, 0, 0, 0, time.UTC)
	}
	c.now = c.now.Add(time.Second)
	return c.now
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu        sync.Mutex
	clock     *mockClock
	users     map[string]*model.User
	createErr error
}

func newMockUserRepo(clock *mockClock) *mockUserRepo {
	return &mockUserRepo{clock: clock, users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	if user.Role == "" {
		user.Role = model.RoleStudent
	}
	user.CreatedAt = m.clock.next()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmailOrUsername(_ context.Context, email, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, filters *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.User
	for _, u := range m.users {
		if filters != nil {
			if filters.Role != "" && u.Role != filters.Role {
				continue
			}
			if filters.Keyword != "" && !strings.Contains(u.Username, filters.Keyword) && !strings.Contains(u.Email, filters.Keyword) {
				continue
			}
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// failingUserRepo 查询邮箱时返回存储错误
type failingUserRepo struct {
	*mockUserRepo
}

func (failingUserRepo) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, errStoreDown
}

// ── Mock ClassRepository ──

type mockClassRepo struct {
	mu      sync.Mutex
	clock   *mockClock
	classes map[string]*model.Class
	getErr  error
	// locks 记录 GetByIDLocked 的调用顺序，如 "UPDATE:<id>"
	locks []string
}

func newMockClassRepo(clock *mockClock) *mockClassRepo {
	return &mockClassRepo{clock: clock, classes: make(map[string]*model.Class)}
}

func (m *mockClassRepo) Create(_ context.Context, class *model.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if class.ClassID == "" {
		class.ClassID = "class-" + strings.ToLower(strings.ReplaceAll(class.Name, " ", "-"))
	}
	if class.Version == 0 {
		class.Version = 1
	}
	class.CreatedAt = m.clock.next()
	class.UpdatedAt = class.CreatedAt
	cp := *class
	m.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if c, ok := m.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) GetByIDLocked(ctx context.Context, id string, strength string) (*model.Class, error) {
	m.mu.Lock()
	m.locks = append(m.locks, strength+":"+id)
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *mockClassRepo) lockLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locks...)
}

func (m *mockClassRepo) List(_ context.Context, filters *repository.ClassListFilters, offset, limit int) ([]model.Class, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Class
	for _, c := range m.classes {
		if filters != nil {
			if filters.Subject != "" && c.Subject != filters.Subject {
				continue
			}
			if filters.Keyword != "" && !strings.Contains(c.Name, filters.Keyword) && !strings.Contains(c.Description, filters.Keyword) {
				continue
			}
		}
		all = append(all, *c)
	}
	sortClasses(all)
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockClassRepo) ListAll(_ context.Context) ([]model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Class
	for _, c := range m.classes {
		all = append(all, *c)
	}
	sortClasses(all)
	return all, nil
}

func (m *mockClassRepo) ListByIDs(_ context.Context, ids []string) ([]model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Class
	for _, id := range ids {
		if c, ok := m.classes[id]; ok {
			result = append(result, *c)
		}
	}
	sortClasses(result)
	return result, nil
}

func (m *mockClassRepo) Update(_ context.Context, class *model.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.classes[class.ClassID]
	if !ok || stored.Version != class.Version {
		return pkgerrors.ErrOptimisticLock
	}
	class.Version++
	class.UpdatedAt = m.clock.next()
	cp := *class
	m.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.classes, id)
	return nil
}

func sortClasses(classes []model.Class) {
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Date != classes[j].Date {
			return classes[i].Date < classes[j].Date
		}
		return classes[i].CreatedAt.Before(classes[j].CreatedAt)
	})
}

// ── Mock VideoRepository ──

type mockVideoRepo struct {
	mu     sync.Mutex
	clock  *mockClock
	videos map[string]*model.Video
	seq    int
}

func newMockVideoRepo(clock *mockClock) *mockVideoRepo {
	return &mockVideoRepo{clock: clock, videos: make(map[string]*model.Video)}
}

func (m *mockVideoRepo) Create(_ context.Context, video *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if video.VideoID == "" {
		m.seq++
		video.VideoID = fmt.Sprintf("video-%d", m.seq)
	}
	video.CreatedAt = m.clock.next()
	cp := *video
	m.videos[video.VideoID] = &cp
	return nil
}

func (m *mockVideoRepo) GetByID(_ context.Context, id string) (*model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.videos[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockVideoRepo) ListByClass(_ context.Context, classID string) ([]model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Video
	for _, v := range m.videos {
		if v.ClassID == classID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockVideoRepo) Delete(_ context.Context, id string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.videos, id)
	return nil
}

func (m *mockVideoRepo) DeleteByClass(_ context.Context, classID string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.videos {
		if v.ClassID == classID {
			delete(m.videos, id)
		}
	}
	return nil
}

// ── Mock EnrollmentRepository ──
// (user_id, class_id) 唯一性在 Create 中加锁校验，模拟数据库唯一索引

type mockEnrollmentRepo struct {
	mu          sync.Mutex
	clock       *mockClock
	users       *mockUserRepo
	classes     *mockClassRepo
	enrollments map[string]*model.Enrollment
	getErr      error
}

func newMockEnrollmentRepo(clock *mockClock, users *mockUserRepo, classes *mockClassRepo) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		clock:       clock,
		users:       users,
		classes:     classes,
		enrollments: make(map[string]*model.Enrollment),
	}
}

func enrollmentKey(userID, classID string) string {
	return userID + "|" + classID
}

func (m *mockEnrollmentRepo) Create(_ context.Context, enrollment *model.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := enrollmentKey(enrollment.UserID, enrollment.ClassID)
	if _, ok := m.enrollments[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	if enrollment.EnrollmentID == "" {
		enrollment.EnrollmentID = "enr-" + key
	}
	enrollment.CreatedAt = m.clock.next()
	enrollment.UpdatedAt = enrollment.CreatedAt
	cp := *enrollment
	m.enrollments[key] = &cp
	return nil
}

func (m *mockEnrollmentRepo) GetByUserAndClass(_ context.Context, userID, classID string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if e, ok := m.enrollments[enrollmentKey(userID, classID)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) UpdateStatus(_ context.Context, userID, classID, status, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollmentKey(userID, classID)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.Status = status
	e.UpdatedBy = &updatedBy
	e.UpdatedAt = m.clock.next()
	return nil
}

func (m *mockEnrollmentRepo) ListByUser(ctx context.Context, userID string) ([]model.Enrollment, error) {
	m.mu.Lock()
	var result []model.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID {
			result = append(result, *e)
		}
	}
	m.mu.Unlock()

	for i := range result {
		if c, err := m.classes.GetByID(ctx, result[i].ClassID); err == nil {
			result[i].Class = c
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockEnrollmentRepo) ListByClass(ctx context.Context, classID string) ([]model.Enrollment, error) {
	m.mu.Lock()
	var result []model.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID {
			result = append(result, *e)
		}
	}
	m.mu.Unlock()

	for i := range result {
		if u, err := m.users.GetByID(ctx, result[i].UserID); err == nil {
			result[i].User = u
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockEnrollmentRepo) CountByClass(_ context.Context, classID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.enrollments {
		if e.ClassID == classID {
			n++
		}
	}
	return n, nil
}

func (m *mockEnrollmentRepo) ListApprovedClassIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var approved []*model.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID && e.Status == model.EnrollmentApproved {
			approved = append(approved, e)
		}
	}
	sort.Slice(approved, func(i, j int) bool { return approved[i].CreatedAt.Before(approved[j].CreatedAt) })
	ids := make([]string, 0, len(approved))
	for _, e := range approved {
		ids = append(ids, e.ClassID)
	}
	return ids, nil
}

func (m *mockEnrollmentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enrollments)
}

// ── 组装 ──

type testRepos struct {
	repo        *repository.Repository
	users       *mockUserRepo
	classes     *mockClassRepo
	videos      *mockVideoRepo
	enrollments *mockEnrollmentRepo
}

func newTestRepos() *testRepos {
	clock := &mockClock{}
	users := newMockUserRepo(clock)
	classes := newMockClassRepo(clock)
	videos := newMockVideoRepo(clock)
	enrollments := newMockEnrollmentRepo(clock, users, classes)
	return &testRepos{
		repo: &repository.Repository{
			User:       users,
			Class:      classes,
			Video:      videos,
			Enrollment: enrollments,
		},
		users:       users,
		classes:     classes,
		videos:      videos,
		enrollments: enrollments,
	}
}

// seedUser 直接写入用户（绕过 AuthService）
func (r *testRepos) seedUser(username, role string) *model.User {
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	_ = r.users.Create(context.Background(), u)
	return u
}

func (r *testRepos) seedClass(name, date, clock string) *model.Class {
	c := &model.Class{Name: name, Subject: "Math", Date: date, Time: clock}
	_ = r.classes.Create(context.Background(), c)
	return c
}

func (r *testRepos) seedEnrollment(userID, classID, status string) {
	_ = r.enrollments.Create(context.Background(), &model.Enrollment{UserID: userID, ClassID: classID, Status: status})
}

func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// ── Mock mail.Sender ──

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	err  error
	sent chan sentMail
}

func newMockMailer() *mockMailer {
	return &mockMailer{sent: make(chan sentMail, 16)}
}

func (m *mockMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent <- sentMail{To: to, Subject: subject, Body: body}
	return m.err
}

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{entries: make(map[string]time.Duration)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[jti] = ttl
	return nil
}
