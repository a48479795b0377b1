package model

import "gorm.io/gorm"

// Video 课程视频表 — 对应 videos
// VideoRef 为外部视频引用（YouTube 视频 ID），仅经由访问控制返回
type Video struct {
	VideoID     string `gorm:"type:uuid;primaryKey"          json:"video_id"`
	ClassID     string `gorm:"type:uuid;not null;index"      json:"class_id"`
	Title       string `gorm:"type:varchar(200);not null"    json:"title"`
	VideoRef    string `gorm:"type:varchar(64);not null"     json:"video_ref"`
	Date        string `gorm:"type:varchar(10);not null"     json:"date"`
	Time        string `gorm:"type:varchar(8);not null"      json:"time"`
	Subject     string `gorm:"type:varchar(100);not null"    json:"subject"`
	Description string `gorm:"type:text;not null;default:''" json:"description,omitempty"`
	Duration    string `gorm:"type:varchar(16);not null;default:''" json:"duration,omitempty"`
	SoftDeleteModel

	// 关联
	Class *Class `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

// TableName 指定表名
func (Video) TableName() string { return "videos" }

// BeforeCreate 生成主键
func (v *Video) BeforeCreate(_ *gorm.DB) error {
	if v.VideoID == "" {
		v.VideoID = newID()
	}
	return nil
}
