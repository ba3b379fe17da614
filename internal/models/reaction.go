package models

import (
	"time"
)

// ReactionKind 需要按用户去重的互动
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionSave ReactionKind = "save"
)

// Reaction 用户对帖子的点赞/收藏记录，保证同一用户只计一次
type Reaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_user_post_kind" json:"user_id"`
	PostID    uint         `gorm:"not null;index;uniqueIndex:idx_user_post_kind" json:"post_id"`
	Kind      ReactionKind `gorm:"size:10;not null;uniqueIndex:idx_user_post_kind" json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}
