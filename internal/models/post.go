package models

import (
	"time"
)

// PostKind 帖子类型
type PostKind string

const (
	PostKindOrdinary     PostKind = "ordinary"
	PostKindAnnouncement PostKind = "announcement"
	PostKindPoll         PostKind = "poll"
	PostKindEvent        PostKind = "event"
	PostKindNote         PostKind = "note-derived" // 由 Note 发布而来
)

// Tier 传播等级，由原始分数决定
type Tier string

const (
	TierLocal    Tier = "local"
	TierTrending Tier = "trending"
	TierViral    Tier = "viral"
	TierNational Tier = "national"
	TierGlobal   Tier = "global"
)

type Post struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	TenantID uint     `gorm:"not null;index:idx_posts_feed,priority:1" json:"tenant_id"`
	UserID   uint     `gorm:"not null;index" json:"user_id"`
	Content  string   `gorm:"type:text" json:"content"`
	Media    []string `gorm:"serializer:json;type:text" json:"media,omitempty"`
	Kind     PostKind `gorm:"size:20;not null;default:'ordinary'" json:"kind"`

	// 互动计数，只允许通过 EngagementService 原子增减
	Likes    int `gorm:"not null;default:0" json:"likes"`
	Comments int `gorm:"not null;default:0" json:"comments"`
	Shares   int `gorm:"not null;default:0" json:"shares"`
	Saves    int `gorm:"not null;default:0" json:"saves"`

	ViralityScore float64 `gorm:"not null;default:0;index:idx_posts_feed,priority:2" json:"virality_score"`
	ViralityTier  Tier    `gorm:"size:20;not null;default:'local'" json:"virality_tier"`

	NoteID         *uint    `gorm:"uniqueIndex" json:"note_id,omitempty"` // 一条 Note 最多发布一次
	PillarID       *uint    `gorm:"index" json:"pillar_id,omitempty"`
	ClusterID      *uint    `gorm:"index" json:"cluster_id,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"` // 0-10

	CreatedAt        time.Time  `gorm:"index:idx_posts_feed,priority:3" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastEngagementAt *time.Time `json:"last_engagement_at,omitempty"`

	// 非数据库字段，用于查询时填充
	TagNames []string `gorm:"-" json:"tags,omitempty"`
}
