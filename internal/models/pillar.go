package models

import (
	"time"
)

// Pillar 租户内的内容主题，由分类流程指派给 Note
type Pillar struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    uint      `gorm:"not null;uniqueIndex:idx_pillar_tenant_name" json:"tenant_id"`
	Name        string    `gorm:"not null;size:100;uniqueIndex:idx_pillar_tenant_name" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
