package handlers

import (
	"ideafeed/internal/services"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type FeedHandler struct {
	feed    *services.FeedService
	unified *services.UnifiedFeedService
}

func NewFeedHandler(feed *services.FeedService, unified *services.UnifiedFeedService) *FeedHandler {
	return &FeedHandler{feed: feed, unified: unified}
}

// List 租户信息流，按分数倒序
func (h *FeedHandler) List(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	page, err := h.feed.List(c.Request.Context(), services.FeedQuery{
		TenantID: tenantID,
		Limit:    q.Limit,
		Cursor:   q.Cursor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type tagURI struct {
	Name string `binding:"required,tagname"`
}

// ListByTag 某个标签下的信息流；路由为通配段，标签名可以含 "/"
func (h *FeedHandler) ListByTag(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	uri := tagURI{Name: strings.TrimPrefix(c.Param("name"), "/")}
	if err := binding.Validator.ValidateStruct(&uri); err != nil {
		bindError(c, err)
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	page, err := h.feed.List(c.Request.Context(), services.FeedQuery{
		TenantID: tenantID,
		Limit:    q.Limit,
		Cursor:   q.Cursor,
		Tag:      uri.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type unifiedQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Unified 活跃聚类与零散 Note 合并的信息流
func (h *FeedHandler) Unified(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	var q unifiedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	feed, err := h.unified.Build(c.Request.Context(), services.UnifiedQuery{
		TenantID: tenantID,
		UserID:   userID,
		Limit:    q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// GetPost 单条帖子详情
func (h *FeedHandler) GetPost(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	post, err := h.feed.Get(c.Request.Context(), tenantID, uri.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}
