package handlers

import (
	"ideafeed/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

type tagListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// List 租户内按热度排序的标签
func (h *TagHandler) List(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	var q tagListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	tags, err := h.tags.Trending(c.Request.Context(), tenantID, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tags})
}
