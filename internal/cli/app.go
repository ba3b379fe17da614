package cli

import (
	"context"
	"fmt"
	"ideafeed/internal/ai"
	"ideafeed/internal/cache"
	"ideafeed/internal/config"
	"ideafeed/internal/db"
	"ideafeed/internal/middleware"
	"ideafeed/internal/mq"
	"ideafeed/internal/router"
	"ideafeed/internal/services"
	"ideafeed/internal/utils"
	"ideafeed/internal/vector"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 一次进程内的依赖集合，可选组件未配置时为 nil
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	store  cache.Store
	redis  *cache.RedisStore
	rabbit *mq.RabbitMQ
	index  *vector.QdrantIndex

	ranking     *services.RankingService
	engagement  *services.EngagementService
	publication *services.PublicationService
	classifier  *services.ClassifierService
	feed        *services.FeedService
	unified     *services.UnifiedFeedService
	tags        *services.TagService

	closers []func()
}

// newApp 读取配置并组装所有服务；withBroker 为 false 时不连接消息队列和向量库
func newApp(withBroker bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	utils.InitLogger(cfg.AppEnv)

	gdb, err := db.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a := &app{cfg: cfg, db: gdb}
	a.closers = append(a.closers, func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	// 缓存：优先 Redis，未配置时退回进程内 LRU
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = rs
		a.store = rs
		a.closers = append(a.closers, func() { rs.Close() })
	} else {
		a.store = cache.NewLocalStore(utils.GetCache())
	}

	var events services.EventPublisher
	if withBroker && cfg.RabbitURL != "" {
		rabbit, err := mq.New(cfg.RabbitURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		a.rabbit = rabbit
		events = rabbit
		a.closers = append(a.closers, rabbit.Close)
	}

	// 注意：nil 指针不能直接赋给接口
	var index services.VectorIndex
	if withBroker && cfg.QdrantHost != "" {
		qi, err := vector.NewQdrantIndex(cfg)
		if err != nil {
			zap.L().Warn("Qdrant unavailable, clustering by vector disabled", zap.Error(err))
		} else {
			a.index = qi
			index = qi
			a.closers = append(a.closers, func() { qi.Close() })
		}
	}
	var classifier services.Classifier
	if c := ai.NewClient(cfg); c != nil {
		classifier = c
	}

	a.ranking = services.NewRankingService(gdb, services.RankingOptions{
		QueueSize:     cfg.RankingQueueSize,
		BatchSize:     cfg.RankingBatchSize,
		FlushInterval: cfg.RankingFlushInterval,
		Cache:         a.store,
	})
	a.engagement = services.NewEngagementService(gdb, a.ranking)
	a.publication = services.NewPublicationService(gdb, a.store, events)
	a.classifier = services.NewClassifierService(gdb, classifier, index, a.publication)
	a.feed = services.NewFeedService(gdb, a.store, services.FeedOptions{
		DefaultLimit: cfg.FeedDefaultLimit,
		MaxLimit:     cfg.FeedMaxLimit,
		Window:       cfg.FeedWindow,
		Timeout:      cfg.FeedTimeout,
		CacheTTL:     cfg.FeedCacheTTL,
	})
	a.unified = services.NewUnifiedFeedService(gdb, services.UnifiedOptions{
		DefaultLimit:  cfg.FeedDefaultLimit,
		MaxLimit:      cfg.FeedMaxLimit,
		ClusterWindow: cfg.ClusterWindow,
		PreviewSize:   cfg.ClusterPreviewSize,
		Timeout:       cfg.FeedTimeout,
	})
	a.tags = services.NewTagService(gdb, cfg.FeedWindow)
	return a, nil
}

func (a *app) routerServices() router.Services {
	return router.Services{
		Feed:        a.feed,
		Unified:     a.unified,
		Engagement:  a.engagement,
		Publication: a.publication,
		Ranking:     a.ranking,
		Tags:        a.tags,
	}
}

// startTracing 配置了 Jaeger 时安装全局 TracerProvider
func (a *app) startTracing() {
	if a.cfg.JaegerEndpoint == "" {
		return
	}
	tp, err := middleware.InitTracer(a.cfg.AppName, a.cfg.AppEnv, a.cfg.JaegerEndpoint)
	if err != nil {
		zap.L().Warn("Tracer init failed", zap.Error(err))
		return
	}
	a.closers = append(a.closers, func() { tp.Shutdown(context.Background()) })
}

// close 逆序释放资源
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	zap.L().Sync()
}
