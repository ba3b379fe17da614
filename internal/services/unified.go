package services

import (
	"context"
	"fmt"
	"ideafeed/internal/models"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ItemType 统一信息流条目的类型标记
type ItemType string

const (
	ItemCluster ItemType = "CLUSTER"
	ItemNote    ItemType = "NOTE"
)

// ClusterItem 活跃聚类，附带最近几条 Note 的预览
type ClusterItem struct {
	ID            uint          `json:"id"`
	Title         string        `json:"title"`
	PillarID      *uint         `json:"pillar_id,omitempty"`
	NoteCount     int           `json:"note_count"`
	LastUpdatedAt time.Time     `json:"last_updated_at"`
	Preview       []NotePreview `json:"preview"`
}

// NotePreview 聚类预览中的一条 Note
type NotePreview struct {
	ID     uint      `json:"id"`
	UserID uint      `json:"user_id"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// NoteItem 未归类或属于当前用户的 Note
type NoteItem struct {
	ID             uint              `json:"id"`
	UserID         uint              `json:"user_id"`
	Text           string            `json:"text"`
	Status         models.NoteStatus `json:"status"`
	ClusterID      *uint             `json:"cluster_id,omitempty"`
	PillarID       *uint             `json:"pillar_id,omitempty"`
	RelevanceScore *float64          `json:"relevance_score,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
	Own            bool              `json:"own"`
}

// FeedItem 带类型标记的联合体，Type 决定 Cluster 与 Note 哪个非空
type FeedItem struct {
	Type    ItemType     `json:"type"`
	SortKey time.Time    `json:"sort_key"`
	Cluster *ClusterItem `json:"cluster,omitempty"`
	Note    *NoteItem    `json:"note,omitempty"`
}

type UnifiedStats struct {
	Clusters int `json:"clusters"`
	Notes    int `json:"notes"`
	Total    int `json:"total"`
}

type UnifiedFeed struct {
	Items []FeedItem   `json:"items"`
	Stats UnifiedStats `json:"stats"`
}

type UnifiedQuery struct {
	TenantID uint
	UserID   uint
	Limit    int
}

type UnifiedOptions struct {
	DefaultLimit  int
	MaxLimit      int
	ClusterWindow time.Duration // 48 小时内有新 Note 的聚类才展示
	PreviewSize   int
	Timeout       time.Duration
}

// UnifiedFeedService 合并活跃聚类和零散 Note，按活动时间倒序
type UnifiedFeedService struct {
	db   *gorm.DB
	opts UnifiedOptions
	now  func() time.Time
}

func NewUnifiedFeedService(db *gorm.DB, opts UnifiedOptions) *UnifiedFeedService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.ClusterWindow <= 0 {
		opts.ClusterWindow = 48 * time.Hour
	}
	if opts.PreviewSize < 0 {
		opts.PreviewSize = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &UnifiedFeedService{
		db:   db,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Build 两个查询互相独立，结果按排序时间合并
func (s *UnifiedFeedService) Build(ctx context.Context, q UnifiedQuery) (*UnifiedFeed, error) {
	if q.Limit == 0 {
		q.Limit = s.opts.DefaultLimit
	}
	if q.Limit < 1 || q.Limit > s.opts.MaxLimit {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, q.Limit)
	}

	ctx, span := tracer.Start(ctx, "UnifiedFeedService.Build")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", int64(q.TenantID)), attribute.Int("feed.limit", q.Limit))

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	clusters, err := s.activeClusters(ctx, q)
	if err != nil {
		return nil, transient("load clusters", err)
	}
	notes, err := s.visibleNotes(ctx, q)
	if err != nil {
		return nil, transient("load notes", err)
	}
	previews, err := s.previews(ctx, q.TenantID, clusters)
	if err != nil {
		return nil, transient("load cluster previews", err)
	}

	items := make([]FeedItem, 0, len(clusters)+len(notes))
	for _, c := range clusters {
		preview := previews[c.ID]
		if preview == nil {
			preview = []NotePreview{}
		}
		items = append(items, FeedItem{
			Type:    ItemCluster,
			SortKey: c.LastUpdatedAt,
			Cluster: &ClusterItem{
				ID:            c.ID,
				Title:         c.Title,
				PillarID:      c.PillarID,
				NoteCount:     c.NoteCount,
				LastUpdatedAt: c.LastUpdatedAt,
				Preview:       preview,
			},
		})
	}
	for i := range notes {
		n := &notes[i]
		items = append(items, FeedItem{
			Type:    ItemNote,
			SortKey: n.ActivityAt(),
			Note: &NoteItem{
				ID:             n.ID,
				UserID:         n.UserID,
				Text:           noteText(n),
				Status:         n.Status,
				ClusterID:      n.ClusterID,
				PillarID:       n.PillarID,
				RelevanceScore: n.RelevanceScore,
				CreatedAt:      n.CreatedAt,
				ProcessedAt:    n.ProcessedAt,
				Own:            n.UserID == q.UserID,
			},
		})
	}

	MergeItems(items)
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}

	feed := &UnifiedFeed{Items: items}
	for _, it := range items {
		switch it.Type {
		case ItemCluster:
			feed.Stats.Clusters++
		case ItemNote:
			feed.Stats.Notes++
		}
	}
	feed.Stats.Total = len(items)
	return feed, nil
}

// MergeItems 按 SortKey 倒序；时间相同时聚类在前，再按 ID 倒序保证稳定
func MergeItems(items []FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.SortKey.Equal(b.SortKey) {
			return a.SortKey.After(b.SortKey)
		}
		if a.Type != b.Type {
			return a.Type == ItemCluster
		}
		return itemID(a) > itemID(b)
	})
}

func itemID(it FeedItem) uint {
	if it.Cluster != nil {
		return it.Cluster.ID
	}
	if it.Note != nil {
		return it.Note.ID
	}
	return 0
}

func (s *UnifiedFeedService) activeClusters(ctx context.Context, q UnifiedQuery) ([]models.Cluster, error) {
	cutoff := s.now().Add(-s.opts.ClusterWindow)
	var clusters []models.Cluster
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND last_updated_at >= ?", q.TenantID, cutoff).
		Order("last_updated_at DESC").
		Limit(q.Limit).
		Find(&clusters).Error
	return clusters, err
}

// visibleNotes 未归类的 Note，加上当前用户自己的全部 Note
func (s *UnifiedFeedService) visibleNotes(ctx context.Context, q UnifiedQuery) ([]models.Note, error) {
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", q.TenantID).
		Where("(cluster_id IS NULL OR user_id = ?)", q.UserID).
		Order("COALESCE(processed_at, created_at) DESC").
		Limit(q.Limit).
		Find(&notes).Error
	return notes, err
}

// previews 一次窗口查询取每个聚类最近的 N 条 Note
func (s *UnifiedFeedService) previews(ctx context.Context, tenantID uint, clusters []models.Cluster) (map[uint][]NotePreview, error) {
	out := make(map[uint][]NotePreview, len(clusters))
	if len(clusters) == 0 || s.opts.PreviewSize == 0 {
		return out, nil
	}

	ids := make([]uint, len(clusters))
	for i, c := range clusters {
		ids[i] = c.ID
	}

	var rows []models.Note
	err := s.db.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT notes.*, ROW_NUMBER() OVER (
				PARTITION BY cluster_id
				ORDER BY COALESCE(processed_at, created_at) DESC, id DESC
			) AS rn
			FROM notes
			WHERE tenant_id = ? AND cluster_id IN ?
		) ranked
		WHERE rn <= ?
		ORDER BY cluster_id, rn`, tenantID, ids, s.opts.PreviewSize).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		n := &rows[i]
		if n.ClusterID == nil {
			continue
		}
		out[*n.ClusterID] = append(out[*n.ClusterID], NotePreview{
			ID:     n.ID,
			UserID: n.UserID,
			Text:   noteText(n),
			At:     n.ActivityAt(),
		})
	}
	return out, nil
}

// noteText 优先展示 AI 整理后的文本
func noteText(n *models.Note) string {
	if n.ClarifiedText != nil && *n.ClarifiedText != "" {
		return *n.ClarifiedText
	}
	return n.RawText
}
