package handlers

import (
	"errors"
	"ideafeed/internal/middleware"
	"ideafeed/internal/services"
	"ideafeed/internal/utils"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义校验规则，路由初始化时调用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
			return utils.ValidTagName(fl.Field().String())
		})
	})
}

// pageQuery 信息流分页参数
type pageQuery struct {
	Limit  int      `form:"limit" binding:"omitempty,min=1,max=100"`
	Cursor *float64 `form:"cursor"`
}

type idURI struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

// JSONError 统一的错误响应
func JSONError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// respondError 按错误类型映射状态码：参数错误 400，不存在 404，临时故障 503
func respondError(c *gin.Context, err error) {
	switch {
	case services.IsValidation(err):
		JSONError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		JSONError(c, http.StatusNotFound, "not found")
	case services.IsRetryable(err):
		c.Header("Retry-After", "1")
		c.Error(err)
		JSONError(c, http.StatusServiceUnavailable, "temporarily unavailable, retry later")
	default:
		c.Error(err)
		zap.L().Error("Request error", zap.String("path", c.FullPath()), zap.Error(err))
		JSONError(c, http.StatusInternalServerError, "internal error")
	}
}

// bindError 请求参数绑定失败
func bindError(c *gin.Context, err error) {
	JSONError(c, http.StatusBadRequest, err.Error())
}

// identity AuthRequired 之后一定存在；缺失说明路由配置有误
func identity(c *gin.Context) (tenantID, userID uint, ok bool) {
	tenantID, userID, ok = middleware.Identity(c)
	if !ok {
		JSONError(c, http.StatusUnauthorized, "not authorized")
	}
	return tenantID, userID, ok
}
