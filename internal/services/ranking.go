package services

import (
	"context"
	"errors"
	"ideafeed/internal/cache"
	"ideafeed/internal/models"
	"ideafeed/internal/utils"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ideafeed/services")

const (
	decayAfterDays        = 7  // 超过 7 天的内容进入时间衰减
	necromancyWindowHours = 24 // 老内容 24 小时内有互动则强制重算
	sweepBatchSize        = 200
)

// Decision 是否重算分数
type Decision int

const (
	DecisionRecompute Decision = iota // 7 天内，照常重算
	DecisionSkip                      // 时间衰减，保留旧分数
	DecisionForce                     // 老内容被重新互动，强制重算
)

func (d Decision) String() string {
	switch d {
	case DecisionRecompute:
		return "recompute"
	case DecisionSkip:
		return "skip"
	case DecisionForce:
		return "force"
	}
	return "unknown"
}

// Decide 时间衰减策略；hoursSinceEngagement 为 nil 表示从未被互动
func Decide(ageDays float64, hoursSinceEngagement *float64) Decision {
	if ageDays <= decayAfterDays {
		return DecisionRecompute
	}
	if hoursSinceEngagement == nil || *hoursSinceEngagement > necromancyWindowHours {
		return DecisionSkip
	}
	return DecisionForce
}

// SweepResult 批量重算的统计
type SweepResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

type RankingOptions struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Cache         cache.Store // 分数改写后失效租户的首页缓存
}

// RankingService 异步重算帖子分数，事件触发和批量扫描共用同一套策略
type RankingService struct {
	db            *gorm.DB
	cache         cache.Store
	queue         chan uint // 待更新的帖子 ID 队列
	pending       map[uint]bool
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	now           func() time.Time

	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewRankingService(db *gorm.DB, opts RankingOptions) *RankingService {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &RankingService{
		db:            db,
		cache:         opts.Cache,
		queue:         make(chan uint, opts.QueueSize),
		pending:       make(map[uint]bool),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		now:           func() time.Time { return time.Now().UTC() },
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start 启动后台 worker
func (s *RankingService) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		go s.worker()
	})
}

// Stop 停止 worker，队列中剩余的帖子会先处理完
func (s *RankingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// ScheduleUpdate 将帖子加入更新队列（异步），短时间内重复的 ID 只算一次
func (s *RankingService) ScheduleUpdate(postID uint) {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
	default:
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		zap.L().Warn("Ranking queue full, dropping update", zap.Uint("post_id", postID))
	}
}

// Pending 当前排队中的帖子数量
func (s *RankingService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *RankingService) worker() {
	defer close(s.done)

	batch := make([]uint, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= s.batchSize {
				s.processBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		case <-s.stop:
			for {
				select {
				case postID := <-s.queue:
					batch = append(batch, postID)
				default:
					if len(batch) > 0 {
						s.processBatch(batch)
					}
					return
				}
			}
		}
	}
}

func (s *RankingService) processBatch(postIDs []uint) {
	for _, postID := range postIDs {
		// 先清除 pending，处理期间的新互动会重新入队
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		decision, err := s.Recalculate(ctx, postID)
		cancel()
		if err != nil {
			zap.L().Warn("Recalculate score failed", zap.Uint("post_id", postID), zap.Error(err))
			continue
		}
		zap.L().Debug("Score recalculated", zap.Uint("post_id", postID), zap.Stringer("decision", decision))
	}
}

// Recalculate 按时间衰减策略重算单个帖子；读取失败时不写入任何分数
func (s *RankingService) Recalculate(ctx context.Context, postID uint) (Decision, error) {
	ctx, span := tracer.Start(ctx, "RankingService.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", int64(postID)))

	var post models.Post
	err := s.db.WithContext(ctx).
		Select("id", "tenant_id", "likes", "comments", "shares", "saves", "created_at", "last_engagement_at").
		First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DecisionSkip, ErrNotFound
	}
	if err != nil {
		return DecisionSkip, transient("load post", err)
	}

	now := s.now()
	decision := s.decide(&post, now)
	if decision == DecisionSkip {
		return decision, nil
	}
	if err := s.writeScore(ctx, &post, now); err != nil {
		return decision, err
	}
	s.invalidate(ctx, map[uint]struct{}{post.TenantID: {}})
	return decision, nil
}

// RecalculateAll 批量扫描：只加载活跃帖子（7 天内或 24 小时内有互动），其余计为跳过
func (s *RankingService) RecalculateAll(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "RankingService.RecalculateAll")
	defer span.End()

	var result SweepResult
	now := s.now()

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return result, transient("count posts", err)
	}

	decayCutoff := now.Add(-decayAfterDays * 24 * time.Hour)
	engagedCutoff := now.Add(-necromancyWindowHours * time.Hour)

	seen := 0
	touched := make(map[uint]struct{})
	var batch []models.Post
	err := s.db.WithContext(ctx).
		Select("id", "tenant_id", "likes", "comments", "shares", "saves", "created_at", "last_engagement_at").
		Where("(created_at >= ? OR last_engagement_at >= ?)", decayCutoff, engagedCutoff).
		FindInBatches(&batch, sweepBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				seen++
				if s.decide(&batch[i], now) == DecisionSkip {
					result.Skipped++
					continue
				}
				if err := s.writeScore(ctx, &batch[i], now); err != nil {
					return err
				}
				touched[batch[i].TenantID] = struct{}{}
				result.Processed++
			}
			return nil
		}).Error
	s.invalidate(ctx, touched)
	if err != nil {
		return result, transient("sweep posts", err)
	}

	if inactive := int(total) - seen; inactive > 0 {
		result.Skipped += inactive
	}
	span.SetAttributes(
		attribute.Int("sweep.processed", result.Processed),
		attribute.Int("sweep.skipped", result.Skipped),
	)
	zap.L().Info("Score sweep finished", zap.Int("processed", result.Processed), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *RankingService) decide(post *models.Post, now time.Time) Decision {
	ageDays := now.Sub(post.CreatedAt).Hours() / 24
	var since *float64
	if post.LastEngagementAt != nil {
		h := now.Sub(*post.LastEngagementAt).Hours()
		since = &h
	}
	return Decide(ageDays, since)
}

// writeScore 只更新分数和等级两列，计数以读取到的快照为准
func (s *RankingService) writeScore(ctx context.Context, post *models.Post, now time.Time) error {
	v := utils.CalculateVirality(utils.EngagementOf(post), now.Sub(post.CreatedAt).Hours())
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		UpdateColumns(map[string]interface{}{
			"virality_score": v.Score,
			"virality_tier":  string(v.Tier),
		}).Error
	if err != nil {
		return transient("write score", err)
	}
	return nil
}

// invalidate 失效分数被改写过的租户首页缓存，失败只记日志
func (s *RankingService) invalidate(ctx context.Context, tenants map[uint]struct{}) {
	if s.cache == nil {
		return
	}
	for tenantID := range tenants {
		if err := s.cache.DeletePrefix(ctx, cache.TenantPrefix(tenantID)); err != nil {
			zap.L().Warn("Invalidate feed cache failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
		}
	}
}
