package router

import (
	"ideafeed/internal/handlers"
	"ideafeed/internal/middleware"
	"ideafeed/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services 路由依赖的业务服务
type Services struct {
	Feed        *services.FeedService
	Unified     *services.UnifiedFeedService
	Engagement  *services.EngagementService
	Publication *services.PublicationService
	Ranking     *services.RankingService
	Tags        *services.TagService
}

// New 创建带公共中间件的引擎
func New(appName, jwtSecret string, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(appName))
	r.Use(middleware.LoggerMiddleware())
	RegisterRoutes(r, jwtSecret, svc)
	return r
}

func RegisterRoutes(r *gin.Engine, jwtSecret string, svc Services) {
	handlers.RegisterValidators()

	// Handlers
	feedHandler := handlers.NewFeedHandler(svc.Feed, svc.Unified)
	engagementHandler := handlers.NewEngagementHandler(svc.Engagement)
	publishHandler := handlers.NewPublishHandler(svc.Publication)
	tagHandler := handlers.NewTagHandler(svc.Tags)
	adminHandler := handlers.NewAdminHandler(svc.Ranking, svc.Tags)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 受保护路由，租户与用户来自 Bearer 令牌
	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(jwtSecret))
	{
		api.GET("/feed", feedHandler.List)                           // 租户信息流
		api.GET("/feed/tags/*name", feedHandler.ListByTag)           // 标签信息流
		api.GET("/feed/unified", feedHandler.Unified)                // 聚类 + Note 合并流
		api.GET("/tags", tagHandler.List)                            // 热门标签
		api.GET("/posts/:id", feedHandler.GetPost)                   // 帖子详情
		api.POST("/posts/:id/engagements", engagementHandler.Record) // 互动
		api.POST("/notes/:id/publish", publishHandler.Publish)       // 发布 Note
	}

	// 管理路由 (Admin Routes)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/recalculate", adminHandler.Recalculate) // 全量重算分数
		admin.POST("/trends", adminHandler.Trends)           // 重算标签热度
	}
}
