package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// UserHandler обрабатывает запросы профиля текущего пользователя.
type UserHandler struct {
	users interfaces.UserRepository
}

// NewUserHandler создает новый UserHandler.
func NewUserHandler(users interfaces.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Credits обрабатывает GET /api/users/me/credits.
func (h *UserHandler) Credits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, creditsResponse{Credits: user.Credits})
}
