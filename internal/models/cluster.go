package models

import (
	"time"
)

// Cluster 语义相近的 Note 聚成的组
type Cluster struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      uint      `gorm:"not null;index:idx_cluster_activity,priority:1" json:"tenant_id"`
	Title         string    `gorm:"not null" json:"title"`
	PillarID      *uint     `gorm:"index" json:"pillar_id,omitempty"`
	NoteCount     int       `gorm:"not null;default:0" json:"note_count"`
	LastUpdatedAt time.Time `gorm:"not null;index:idx_cluster_activity,priority:2" json:"last_updated_at"`
	CreatedAt     time.Time `json:"created_at"`
}
