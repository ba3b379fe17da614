package services

import (
	"context"
	"fmt"
	"ideafeed/internal/models"
	"ideafeed/internal/utils"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagService 租户内标签：发布时按需创建，热度定期重算
type TagService struct {
	db     *gorm.DB
	window time.Duration
	now    func() time.Time
}

func NewTagService(db *gorm.DB, window time.Duration) *TagService {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &TagService{
		db:     db,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureTag 在事务内找到或创建标签，名称统一小写；并发创建靠唯一索引兜底
func EnsureTag(tx *gorm.DB, tenantID uint, name string) (*models.Tag, error) {
	if !utils.ValidTagName(name) {
		return nil, fmt.Errorf("invalid tag name %q", name)
	}
	normalized := utils.NormalizeTagName(name)

	tag := models.Tag{TenantID: tenantID, Name: normalized}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
		return nil, err
	}

	var stored models.Tag
	if err := tx.Where("tenant_id = ? AND name = ?", tenantID, normalized).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// LinkPostTag 关联帖子与标签，重复关联忽略
func LinkPostTag(tx *gorm.DB, postID, tagID uint) error {
	link := models.PostTag{PostID: postID, TagID: tagID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

// Trending 按热度列出租户内标签
func (s *TagService) Trending(ctx context.Context, tenantID uint, limit int) ([]models.Tag, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("trend_score DESC, name ASC").
		Limit(limit).
		Find(&tags).Error
	if err != nil {
		return nil, transient("list tags", err)
	}
	return tags, nil
}

// RecalculateTrends 热度 = 可见窗口内已打标签帖子的分数之和，一条 UPDATE 完成
func (s *TagService) RecalculateTrends(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "TagService.RecalculateTrends")
	defer span.End()

	cutoff := s.now().Add(-s.window)
	res := s.db.WithContext(ctx).Exec(`
		UPDATE tags SET trend_score = COALESCE((
			SELECT SUM(posts.virality_score)
			FROM post_tags
			JOIN posts ON posts.id = post_tags.post_id
			WHERE post_tags.tag_id = tags.id
			  AND posts.tenant_id = tags.tenant_id
			  AND posts.created_at >= ?
		), 0)`, cutoff)
	if res.Error != nil {
		return 0, transient("recalculate trends", res.Error)
	}

	zap.L().Info("Tag trends recalculated", zap.Int64("tags", res.RowsAffected))
	return res.RowsAffected, nil
}
