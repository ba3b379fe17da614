package models

import (
	"time"
)

// NoteStatus 分类处理状态
type NoteStatus string

const (
	NoteStatusPending   NoteStatus = "pending"
	NoteStatusProcessed NoteStatus = "processed"
	NoteStatusRefused   NoteStatus = "refused"
)

// Note 用户提交的一条想法，经过 AI 分类后可能发布为 Post
type Note struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TenantID       uint       `gorm:"not null;index" json:"tenant_id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	RawText        string     `gorm:"type:text;not null" json:"raw_text"`
	ClarifiedText  *string    `gorm:"type:text" json:"clarified_text,omitempty"`
	Status         NoteStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ClusterID      *uint      `gorm:"index" json:"cluster_id,omitempty"`
	PillarID       *uint      `gorm:"index" json:"pillar_id,omitempty"`
	RelevanceScore *float64   `json:"relevance_score,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// ActivityAt 统一信息流中的排序时间：处理完成时间优先
func (n *Note) ActivityAt() time.Time {
	if n.ProcessedAt != nil {
		return *n.ProcessedAt
	}
	return n.CreatedAt
}
