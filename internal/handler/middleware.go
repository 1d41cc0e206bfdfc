package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyboard-server/internal/models"
)

const (
	contextKeyUserID = "userID"
	contextKeyClaims = "claims"
)

// TokenVerifier проверяет токен и возвращает его claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.Claims, error)
}

// AuthMiddleware извлекает JWT из заголовка Authorization (или query-параметра
// token для websocket-подключений) и кладет user id в контекст запроса.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    ErrCodeUnauthorized,
				Message: "Authorization token required",
			})
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			handleServiceError(c, err)
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Браузерный WebSocket API не позволяет выставить заголовок.
	return c.Query("token")
}

// currentUserID возвращает user id, положенный middleware в контекст.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
