package service

import (
	"context"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"lcs-classroom/backend/config"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/internal/repository"
)

// ── 课程日历 ──────────────────────────────────────────────
//
// 将调用者可参加的课程导出为 iCalendar (RFC 5545)：
//   - admin：全部课程
//   - 其余用户：已通过审核的课程
//   - 每门课程一个 VEVENT，开始时间 = date + time，时长取配置
//   - date/time 无法解析的课程跳过并记录日志
// ─────────────────────────────────────────────────────────────

const defaultEventMinutes = 60

// CalendarService 课程日历业务接口
type CalendarService interface {
	BuildCalendar(ctx context.Context, callerID, callerRole string) (string, error)
}

type calendarService struct {
	repo     *repository.Repository
	baseURL  string
	duration time.Duration
	loc      *time.Location
	logger   *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) CalendarService {
	minutes := cfg.Feature.CalendarEventMinutes
	if minutes <= 0 {
		minutes = defaultEventMinutes
	}
	loc := time.UTC
	if cfg.Feature.CalendarTimezone != "" {
		if l, err := time.LoadLocation(cfg.Feature.CalendarTimezone); err == nil {
			loc = l
		}
	}
	return &calendarService{
		repo:     repo,
		baseURL:  strings.TrimRight(cfg.Server.BaseURL, "/"),
		duration: time.Duration(minutes) * time.Minute,
		loc:      loc,
		logger:   logger,
	}
}

func (s *calendarService) BuildCalendar(ctx context.Context, callerID, callerRole string) (string, error) {
	classes, err := s.visibleClasses(ctx, callerID, callerRole)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//LCS Classroom//Class Calendar//ZH")
	cal.SetXWRCalName("LCS 课程表")
	cal.SetXWRTimezone(s.loc.String())

	now := time.Now().UTC()
	for _, c := range classes {
		start, err := c.StartsAt(s.loc)
		if err != nil {
			s.logger.Warn("课程时间无法解析，跳过", zap.String("class_id", c.ClassID), zap.Error(err))
			continue
		}

		event := cal.AddEvent(c.ClassID + "@lcs-classroom")
		event.SetDtStampTime(now)
		event.SetStartAt(start)
		event.SetEndAt(start.Add(s.duration))
		event.SetSummary(c.Name)
		if c.Description != "" {
			event.SetDescription(c.Description)
		}
		event.SetProperty(ics.ComponentPropertyCategories, c.Subject)
		if s.baseURL != "" {
			event.SetURL(s.baseURL + "/classes/" + c.ClassID)
		}
	}

	return cal.Serialize(), nil
}

func (s *calendarService) visibleClasses(ctx context.Context, callerID, callerRole string) ([]model.Class, error) {
	if callerRole == model.RoleAdmin {
		classes, err := s.repo.Class.ListAll(ctx)
		if err != nil {
			s.logger.Error("查询课程失败", zap.Error(err))
		}
		return classes, err
	}

	ids, err := s.repo.Enrollment.ListApprovedClassIDs(ctx, callerID)
	if err != nil {
		s.logger.Error("查询已通过课程失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, err
	}
	classes, err := s.repo.Class.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
	}
	return classes, err
}
