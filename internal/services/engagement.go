package services

import (
	"context"
	"errors"
	"fmt"
	"ideafeed/internal/models"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Action 用户对帖子的互动动作
type Action string

const (
	ActionLike    Action = "like"
	ActionUnlike  Action = "unlike"
	ActionComment Action = "comment"
	ActionShare   Action = "share"
	ActionSave    Action = "save"
	ActionUnsave  Action = "unsave"
)

type actionRule struct {
	column   string
	delta    int
	reaction models.ReactionKind // 非空表示按用户去重
}

var actionRules = map[Action]actionRule{
	ActionLike:    {column: "likes", delta: 1, reaction: models.ReactionLike},
	ActionUnlike:  {column: "likes", delta: -1, reaction: models.ReactionLike},
	ActionComment: {column: "comments", delta: 1},
	ActionShare:   {column: "shares", delta: 1},
	ActionSave:    {column: "saves", delta: 1, reaction: models.ReactionSave},
	ActionUnsave:  {column: "saves", delta: -1, reaction: models.ReactionSave},
}

// ParseAction 校验动作名
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionRules[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// Engagement 一次互动事件
type Engagement struct {
	TenantID uint   `json:"tenant_id"`
	UserID   uint   `json:"user_id"`
	PostID   uint   `json:"post_id"`
	Action   Action `json:"action"`
}

// EngagementResult 互动后的计数快照
type EngagementResult struct {
	PostID   uint `json:"post_id"`
	Changed  bool `json:"changed"` // 重复点赞/收藏时为 false
	Likes    int  `json:"likes"`
	Comments int  `json:"comments"`
	Shares   int  `json:"shares"`
	Saves    int  `json:"saves"`
}

// Scheduler 接收重算通知，由 RankingService 实现
type Scheduler interface {
	ScheduleUpdate(postID uint)
}

// EngagementService 互动计数账本：只做数据库层面的原子增减
type EngagementService struct {
	db        *gorm.DB
	scheduler Scheduler
	now       func() time.Time
}

func NewEngagementService(db *gorm.DB, scheduler Scheduler) *EngagementService {
	return &EngagementService{
		db:        db,
		scheduler: scheduler,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record 记录一次互动并通知重算；其他租户的帖子视为不存在
func (s *EngagementService) Record(ctx context.Context, e Engagement) (*EngagementResult, error) {
	rule, ok := actionRules[e.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, e.Action)
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).
			Where("id = ? AND tenant_id = ?", e.PostID, e.TenantID).
			Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}

		if rule.reaction != "" {
			applied, err := s.toggleReaction(tx, e.UserID, e.PostID, rule)
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
		}

		if err := s.applyDelta(tx, e, rule); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("record engagement", err)
	}

	if changed && s.scheduler != nil {
		s.scheduler.ScheduleUpdate(e.PostID)
	}

	var post models.Post
	if err := s.db.WithContext(ctx).
		Select("id", "likes", "comments", "shares", "saves").
		First(&post, e.PostID).Error; err != nil {
		// 计数已写入，读取快照失败不影响结果
		zap.L().Warn("Load counters after engagement failed", zap.Uint("post_id", e.PostID), zap.Error(err))
		return &EngagementResult{PostID: e.PostID, Changed: changed}, nil
	}
	return &EngagementResult{
		PostID:   post.ID,
		Changed:  changed,
		Likes:    post.Likes,
		Comments: post.Comments,
		Shares:   post.Shares,
		Saves:    post.Saves,
	}, nil
}

// toggleReaction 点赞/收藏按用户去重，返回计数是否需要变化
func (s *EngagementService) toggleReaction(tx *gorm.DB, userID, postID uint, rule actionRule) (bool, error) {
	if rule.delta < 0 {
		res := tx.Where("user_id = ? AND post_id = ? AND kind = ?", userID, postID, rule.reaction).
			Delete(&models.Reaction{})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected > 0, nil
	}

	// 冲突时不报错，事务保持可用
	reaction := models.Reaction{UserID: userID, PostID: postID, Kind: rule.reaction}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// applyDelta 单条 UPDATE 完成增减，减到 0 为止
func (s *EngagementService) applyDelta(tx *gorm.DB, e Engagement, rule actionRule) error {
	updates := map[string]interface{}{}
	if rule.delta > 0 {
		updates[rule.column] = gorm.Expr(rule.column+" + ?", rule.delta)
		updates["last_engagement_at"] = s.now()
	} else {
		updates[rule.column] = gorm.Expr(fmt.Sprintf("CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END", rule.column, rule.column))
	}

	return tx.Model(&models.Post{}).
		Where("id = ? AND tenant_id = ?", e.PostID, e.TenantID).
		UpdateColumns(updates).Error
}
