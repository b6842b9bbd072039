package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/suma/internal/pkg/errcode"
	"github.com/xxxsen/suma/internal/pkg/jwt"
	"github.com/xxxsen/suma/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// JWTAuth accepts only access tokens; refresh tokens are rejected here.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing token")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID())
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
