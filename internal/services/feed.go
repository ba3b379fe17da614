package services

import (
	"context"
	"errors"
	"fmt"
	"ideafeed/internal/cache"
	"ideafeed/internal/models"
	"ideafeed/internal/utils"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FeedOptions struct {
	DefaultLimit int
	MaxLimit     int
	Window       time.Duration // 只展示最近 30 天
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// FeedQuery 一次信息流请求的参数，Cursor 为上一页最后一条的分数
type FeedQuery struct {
	TenantID uint
	Limit    int
	Cursor   *float64
	Tag      string
}

// FeedPost 信息流中的一条帖子
type FeedPost struct {
	models.Post
	ContentHTML string `json:"content_html"`
}

// FeedPage 一页结果；NextCursor 为本页最后一条的分数，空页为 nil
type FeedPage struct {
	Items      []FeedPost `json:"items"`
	NextCursor *float64   `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

// FeedService 按分数倒序分页读取帖子，严格按租户隔离
type FeedService struct {
	db    *gorm.DB
	cache cache.Store
	opts  FeedOptions
	now   func() time.Time
}

func NewFeedService(db *gorm.DB, store cache.Store, opts FeedOptions) *FeedService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &FeedService{
		db:    db,
		cache: store,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// normalize 校验并补全分页参数
func (s *FeedService) normalize(q FeedQuery) (FeedQuery, error) {
	if q.Limit == 0 {
		q.Limit = s.opts.DefaultLimit
	}
	if q.Limit < 1 || q.Limit > s.opts.MaxLimit {
		return q, fmt.Errorf("%w: got %d", ErrInvalidLimit, q.Limit)
	}
	if q.Cursor != nil && (math.IsNaN(*q.Cursor) || math.IsInf(*q.Cursor, 0)) {
		return q, ErrInvalidCursor
	}
	q.Tag = utils.NormalizeTagName(q.Tag)
	return q, nil
}

// List 取一页帖子；超时或出错时整页失败，不返回半页
func (s *FeedService) List(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	q, err := s.normalize(q)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "FeedService.List")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tenant.id", int64(q.TenantID)),
		attribute.Int("feed.limit", q.Limit),
		attribute.String("feed.tag", q.Tag),
	)

	// 只缓存首页，翻页请求直接查库
	cacheable := q.Cursor == nil && s.cache != nil && s.opts.CacheTTL > 0
	key := cache.FeedKey(q.TenantID, q.Tag, q.Limit)
	if cacheable {
		var cached FeedPage
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			zap.L().Warn("Read feed cache failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	posts, err := s.query(ctx, q)
	if err != nil {
		return nil, transient("list feed", err)
	}

	page := &FeedPage{Items: make([]FeedPost, 0, q.Limit)}
	if len(posts) > q.Limit {
		page.HasMore = true
		posts = posts[:q.Limit]
	}
	if err := fillTagNames(ctx, s.db, posts); err != nil {
		return nil, transient("list feed tags", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, transient("list feed", err)
	}

	for _, p := range posts {
		page.Items = append(page.Items, FeedPost{Post: p, ContentHTML: utils.RenderMarkdown(p.Content)})
	}
	if n := len(posts); n > 0 {
		last := posts[n-1].ViralityScore
		page.NextCursor = &last
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, page, s.opts.CacheTTL); err != nil {
			zap.L().Warn("Write feed cache failed", zap.String("key", key), zap.Error(err))
		}
	}
	return page, nil
}

// query 多取一条用来判断 has_more
func (s *FeedService) query(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	cutoff := s.now().Add(-s.opts.Window)

	tx := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.*").
		Where("posts.tenant_id = ? AND posts.created_at >= ?", q.TenantID, cutoff)

	if q.Cursor != nil {
		tx = tx.Where("posts.virality_score < ?", *q.Cursor)
	}
	if q.Tag != "" {
		tx = tx.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.tenant_id = ? AND tags.name = ?", q.TenantID, q.Tag)
	}

	var posts []models.Post
	err := tx.Order("posts.virality_score DESC, posts.created_at DESC").
		Limit(q.Limit + 1).
		Find(&posts).Error
	return posts, err
}

// Get 读取单条帖子；不属于该租户时与不存在一样返回 ErrNotFound
func (s *FeedService) Get(ctx context.Context, tenantID, postID uint) (*FeedPost, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var post models.Post
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", postID, tenantID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("get post", err)
	}

	posts := []models.Post{post}
	if err := fillTagNames(ctx, s.db, posts); err != nil {
		return nil, transient("get post tags", err)
	}
	return &FeedPost{Post: posts[0], ContentHTML: utils.RenderMarkdown(post.Content)}, nil
}

// fillTagNames 批量填充帖子的标签名
func fillTagNames(ctx context.Context, gdb *gorm.DB, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type tagRow struct {
		PostID uint
		Name   string
	}
	var rows []tagRow
	err := gdb.WithContext(ctx).Table("post_tags").
		Select("post_tags.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", postIDs).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	names := make(map[uint][]string)
	for _, r := range rows {
		names[r.PostID] = append(names[r.PostID], r.Name)
	}
	for i := range posts {
		posts[i].TagNames = names[posts[i].ID]
	}
	return nil
}
