package model

import "gorm.io/gorm"

// 选课状态
const (
	EnrollmentPending  = "pending"
	EnrollmentApproved = "approved"
	EnrollmentRejected = "rejected"
)

// IsValidEnrollmentStatus 判断选课状态是否合法
func IsValidEnrollmentStatus(status string) bool {
	switch status {
	case EnrollmentPending, EnrollmentApproved, EnrollmentRejected:
		return true
	}
	return false
}

// Enrollment 选课记录表 — 对应 enrollments
// (user_id, class_id) 唯一，由数据库约束 uk_enrollments_user_class 保证；记录不做物理删除
type Enrollment struct {
	EnrollmentID string `gorm:"type:uuid;primaryKey"                                        json:"enrollment_id"`
	UserID       string `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_user_class,priority:1" json:"user_id"`
	ClassID      string `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_user_class,priority:2;index" json:"class_id"`
	Status       string `gorm:"type:varchar(20);not null;default:'pending'"                 json:"status"`
	BaseModel

	// 关联
	User  *User  `gorm:"foreignKey:UserID;references:UserID"   json:"user,omitempty"`
	Class *Class `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }

// BeforeCreate 生成主键
func (e *Enrollment) BeforeCreate(_ *gorm.DB) error {
	if e.EnrollmentID == "" {
		e.EnrollmentID = newID()
	}
	return nil
}
