package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CheckTenantKey = "tenant_id"
	CheckUserKey   = "user_id"
	CheckRoleKey   = "role"
)

const RoleAdmin = "admin"

var errNotAuthorized = errors.New("not authorized")

// Claims 访问令牌中的身份信息
type Claims struct {
	TenantID uint   `json:"tenant_id"`
	UserID   uint   `json:"user_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 签发 HS256 令牌，供 CLI 和测试使用
func GenerateToken(secret string, tenantID, userID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken 校验签名和过期时间
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims.TenantID == 0 || claims.UserID == 0 {
		return nil, errNotAuthorized
	}
	return claims, nil
}

// AuthRequired 从 Bearer 令牌解析租户和用户，写入上下文
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthorized.Error()})
			return
		}

		claims, err := ParseToken(secret, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthorized.Error()})
			return
		}

		c.Set(CheckTenantKey, claims.TenantID)
		c.Set(CheckUserKey, claims.UserID)
		c.Set(CheckRoleKey, claims.Role)
		c.Next()
	}
}

// AdminRequired 需在 AuthRequired 之后使用
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CheckRoleKey) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no access"})
			return
		}
		c.Next()
	}
}

// Identity 读取 AuthRequired 写入的租户和用户
func Identity(c *gin.Context) (tenantID, userID uint, ok bool) {
	t, ok1 := c.Get(CheckTenantKey)
	u, ok2 := c.Get(CheckUserKey)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	tenantID, ok1 = t.(uint)
	userID, ok2 = u.(uint)
	return tenantID, userID, ok1 && ok2
}
