package handlers

import (
	"ideafeed/internal/services"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PublishHandler struct {
	publication *services.PublicationService
}

func NewPublishHandler(publication *services.PublicationService) *PublishHandler {
	return &PublishHandler{publication: publication}
}

// Publish 把已处理的 Note 发布为帖子；重复发布返回 200 和已有帖子
func (h *PublishHandler) Publish(c *gin.Context) {
	tenantID, _, ok := identity(c)
	if !ok {
		return
	}
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.publication.PublishInTenant(c.Request.Context(), tenantID, uri.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	code := http.StatusCreated
	if res.AlreadyPublished {
		code = http.StatusOK
	}
	c.JSON(code, res)
}
