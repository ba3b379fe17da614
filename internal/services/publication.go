package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ideafeed/internal/cache"
	"ideafeed/internal/db"
	"ideafeed/internal/models"
	"ideafeed/internal/utils"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueuePostPublished 发布成功后的事件队列
const QueuePostPublished = "post.published"

// EventPublisher 事件出口，由 mq.RabbitMQ 实现
type EventPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// PostPublishedEvent 通知下游有新帖子
type PostPublishedEvent struct {
	PostID      uint      `json:"post_id"`
	NoteID      uint      `json:"note_id"`
	TenantID    uint      `json:"tenant_id"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishResult AlreadyPublished 为 true 时 Post 是之前发布的那条
type PublishResult struct {
	Post             *models.Post `json:"post"`
	AlreadyPublished bool         `json:"already_published"`
}

// PublicationService 把处理完成的 Note 发布为 Post，每条 Note 只发布一次
type PublicationService struct {
	db     *gorm.DB
	cache  cache.Store
	events EventPublisher
	now    func() time.Time
}

func NewPublicationService(db *gorm.DB, store cache.Store, events EventPublisher) *PublicationService {
	return &PublicationService{
		db:     db,
		cache:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var errDuplicatePublish = errors.New("duplicate publish")

// Publish 重新读取 Note 后发布；唯一索引冲突按成功处理
func (s *PublicationService) Publish(ctx context.Context, noteID uint) (*PublishResult, error) {
	ctx, span := tracer.Start(ctx, "PublicationService.Publish")
	defer span.End()
	span.SetAttributes(attribute.Int64("note.id", int64(noteID)))

	var note models.Note
	err := s.db.WithContext(ctx).First(&note, noteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("load note", err)
	}

	if note.Status != models.NoteStatusProcessed || note.ClarifiedText == nil {
		return nil, fmt.Errorf("%w: note %d is %s", ErrNoteNotReady, note.ID, note.Status)
	}
	// 正文原样保存，渲染时再做 HTML 清洗
	content := strings.TrimSpace(*note.ClarifiedText)
	if content == "" {
		return nil, fmt.Errorf("%w: note %d has no clarified text", ErrNoteNotReady, note.ID)
	}

	existing, err := s.findByNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &PublishResult{Post: existing, AlreadyPublished: true}, nil
	}

	seed := utils.ColdStartScore()
	post := models.Post{
		TenantID:       note.TenantID,
		UserID:         note.UserID,
		Content:        content,
		Kind:           models.PostKindNote,
		NoteID:         &note.ID,
		PillarID:       note.PillarID,
		ClusterID:      note.ClusterID,
		RelevanceScore: note.RelevanceScore,
		ViralityScore:  seed.Score,
		ViralityTier:   seed.Tier,
		CreatedAt:      s.now(), // 以发布时间重新开始冷启动窗口
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pillarName, err := s.pillarName(tx, &note)
		if err != nil {
			return err
		}
		if pillarName == "" {
			post.PillarID = nil
		}

		if err := tx.Create(&post).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return errDuplicatePublish
			}
			return err
		}

		if strings.TrimSpace(pillarName) == "" {
			return nil
		}
		tag, err := EnsureTag(tx, note.TenantID, pillarName)
		if err != nil {
			return err
		}
		if err := LinkPostTag(tx, post.ID, tag.ID); err != nil {
			return err
		}
		post.TagNames = []string{tag.Name}
		return nil
	})
	if errors.Is(err, errDuplicatePublish) {
		// 并发发布输了竞争，返回赢家
		existing, ferr := s.findByNote(ctx, note.ID)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, transient("publish note", err)
		}
		return &PublishResult{Post: existing, AlreadyPublished: true}, nil
	}
	if err != nil {
		return nil, transient("publish note", err)
	}

	s.afterPublish(ctx, &post)

	zap.L().Info("Note published",
		zap.Uint("note_id", note.ID),
		zap.Uint("post_id", post.ID),
		zap.Uint("tenant_id", post.TenantID),
	)
	return &PublishResult{Post: &post}, nil
}

// PublishInTenant 只允许发布本租户的 Note，其他租户的 Note 视为不存在
func (s *PublicationService) PublishInTenant(ctx context.Context, tenantID, noteID uint) (*PublishResult, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ? AND tenant_id = ?", noteID, tenantID).
		Count(&n).Error
	if err != nil {
		return nil, transient("load note", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Publish(ctx, noteID)
}

// pillarName 返回继承主题的名称；主题不存在或不属于同一租户时返回空
func (s *PublicationService) pillarName(tx *gorm.DB, note *models.Note) (string, error) {
	if note.PillarID == nil {
		return "", nil
	}
	var pillar models.Pillar
	err := tx.Where("id = ? AND tenant_id = ?", *note.PillarID, note.TenantID).First(&pillar).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		zap.L().Warn("Pillar not found for note, publishing without it",
			zap.Uint("note_id", note.ID), zap.Uint("pillar_id", *note.PillarID))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pillar.Name, nil
}

func (s *PublicationService) findByNote(ctx context.Context, noteID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Where("note_id = ?", noteID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("find published post", err)
	}
	return &post, nil
}

// afterPublish 失效缓存并发出事件，失败只记日志
func (s *PublicationService) afterPublish(ctx context.Context, post *models.Post) {
	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, cache.TenantPrefix(post.TenantID)); err != nil {
			zap.L().Warn("Invalidate feed cache failed", zap.Uint("tenant_id", post.TenantID), zap.Error(err))
		}
	}

	if s.events == nil || post.NoteID == nil {
		return
	}
	body, err := json.Marshal(PostPublishedEvent{
		PostID:      post.ID,
		NoteID:      *post.NoteID,
		TenantID:    post.TenantID,
		PublishedAt: post.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, QueuePostPublished, body); err != nil {
		zap.L().Warn("Publish post.published event failed", zap.Uint("post_id", post.ID), zap.Error(err))
	}
}
