package model

import "gorm.io/gorm"

// 用户角色
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	return role == RoleStudent || role == RoleAdmin
}

// User 用户表 — 对应 users
// 注册后除密码外不可修改，无删除路径
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"                                   json:"user_id"`
	Username     string `gorm:"type:varchar(50);not null;uniqueIndex:uk_users_username" json:"username"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex:uk_users_email"   json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                             json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'student'"            json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = newID()
	}
	return nil
}
