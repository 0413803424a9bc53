package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"match_chat/internal/utils"
)

const userIDKey = "userID"

// AuthMiddleware 是一個 Gin 中間件，用於驗證請求的 JWT token
// WebSocket 客戶端無法自訂標頭，因此也接受 ?token= 查詢參數
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Authorization header format must be Bearer {token}")
			return
		}

		// 解析 JWT token
		claims, err := utils.ParseToken(secret, token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// 將用戶信息設置到上下文中
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserIDFromContext 取得 AuthMiddleware 寫入的使用者 ID
func UserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	return userID, userID != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"kind": "unauthorized", "message": message},
	})
}
