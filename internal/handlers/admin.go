package handlers

import (
	"ideafeed/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	ranking *services.RankingService
	tags    *services.TagService
}

func NewAdminHandler(ranking *services.RankingService, tags *services.TagService) *AdminHandler {
	return &AdminHandler{ranking: ranking, tags: tags}
}

// Recalculate 触发一次全量扫描，供外部定时任务调用
func (h *AdminHandler) Recalculate(c *gin.Context) {
	res, err := h.ranking.RecalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Trends 重算标签热度
func (h *AdminHandler) Trends(c *gin.Context) {
	n, err := h.tags.RecalculateTrends(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
