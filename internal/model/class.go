package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 课程日期/时间的存储格式（沿用前端约定，按字符串存储）
const (
	ClassDateLayout = "2006-01-02"
	clockLayout12h  = "3:04 PM"
	clockLayout24h  = "15:04"
)

// Class 课程表 — 对应 classes
type Class struct {
	ClassID     string  `gorm:"type:uuid;primaryKey"               json:"class_id"`
	Name        string  `gorm:"type:varchar(200);not null"         json:"name"`
	Subject     string  `gorm:"type:varchar(100);not null;index"   json:"subject"`
	Description string  `gorm:"type:text;not null;default:''"      json:"description"`
	Date        string  `gorm:"type:varchar(10);not null"          json:"date"`
	Time        string  `gorm:"type:varchar(8);not null"           json:"time"`
	ImageURL    *string `gorm:"column:image_url;type:varchar(500)" json:"image_url,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Class) TableName() string { return "classes" }

// BeforeCreate 生成主键
func (c *Class) BeforeCreate(_ *gorm.DB) error {
	if c.ClassID == "" {
		c.ClassID = newID()
	}
	return nil
}

// StartsAt 将 Date + Time 解析为 loc 时区下的开课时间
func (c *Class) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseSchedule(c.Date, c.Time, loc)
}

// ParseClassDate 解析 YYYY-MM-DD
func ParseClassDate(s string) (time.Time, error) {
	return time.Parse(ClassDateLayout, s)
}

// ParseClock 解析 "10:00 AM" 或 "14:30"
func ParseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(clockLayout12h, strings.ToUpper(s)); err == nil {
		return t, nil
	}
	return time.Parse(clockLayout24h, s)
}

// ParseSchedule 组合日期与时间
func ParseSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := ParseClassDate(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式无效 %q: %w", date, err)
	}
	t, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("时间格式无效 %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
