package models

import (
	"time"
)

// Tag 租户内标签，名称统一小写
type Tag struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   uint      `gorm:"not null;uniqueIndex:idx_tag_tenant_name" json:"tenant_id"`
	Name       string    `gorm:"not null;size:100;uniqueIndex:idx_tag_tenant_name" json:"name"`
	TrendScore float64   `gorm:"not null;default:0" json:"trend_score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostTag 帖子与标签的关联
type PostTag struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	TagID     uint      `gorm:"primaryKey;autoIncrement:false;index" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
