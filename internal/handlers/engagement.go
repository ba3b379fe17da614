package handlers

import (
	"ideafeed/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type EngagementHandler struct {
	engagement *services.EngagementService
}

func NewEngagementHandler(engagement *services.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

type engagementBody struct {
	Action string `json:"action" binding:"required,oneof=like unlike comment share save unsave"`
}

// Record 点赞、评论、分享、收藏及其撤销
func (h *EngagementHandler) Record(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}
	var body engagementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}
	action, err := services.ParseAction(body.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.engagement.Record(c.Request.Context(), services.Engagement{
		TenantID: tenantID,
		UserID:   userID,
		PostID:   uri.ID,
		Action:   action,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
