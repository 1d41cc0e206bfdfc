package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

// StoryHandler обслуживает операции над историями и их сегментами.
type StoryHandler struct {
	storyService *service.StoryService
}

// NewStoryHandler создает новый StoryHandler.
func NewStoryHandler(storyService *service.StoryService) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

// Create обрабатывает POST /api/stories. Непустое description запускает
// генерацию сценария по описанию.
func (h *StoryHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	var story *models.Story
	var err error
	if strings.TrimSpace(req.Description) != "" {
		story, err = h.storyService.CreateGuidedStory(c.Request.Context(), userID, req.Title, req.Description)
	} else {
		story, err = h.storyService.CreateStory(c.Request.Context(), userID, req.Title)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

// List обрабатывает GET /api/stories.
func (h *StoryHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	stories, err := h.storyService.ListStories(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

// Get обрабатывает GET /api/stories/:id.
func (h *StoryHandler) Get(c *gin.Context) {
	userID, storyID, ok := h.userAndID(c)
	if !ok {
		return
	}
	story, segments, err := h.storyService.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, storyResponse{Story: story, Segments: segments})
}

// Delete обрабатывает DELETE /api/stories/:id.
func (h *StoryHandler) Delete(c *gin.Context) {
	userID, storyID, ok := h.userAndID(c)
	if !ok {
		return
	}
	if err := h.storyService.DeleteStory(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateScript обрабатывает PUT /api/stories/:id/script.
func (h *StoryHandler) UpdateScript(c *gin.Context) {
	userID, storyID, ok := h.userAndID(c)
	if !ok {
		return
	}
	var req updateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := h.storyService.UpdateScript(c.Request.Context(), userID, storyID, req.Script); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Refine обрабатывает POST /api/stories/:id/refine.
func (h *StoryHandler) Refine(c *gin.Context) {
	userID, storyID, ok := h.userAndID(c)
	if !ok {
		return
	}
	var req refineScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := h.storyService.RefineScript(c.Request.Context(), userID, storyID, req.Instruction); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GenerateSegments обрабатывает POST /api/stories/:id/generate-segments.
func (h *StoryHandler) GenerateSegments(c *gin.Context) {
	userID, storyID, ok := h.userAndID(c)
	if !ok {
		return
	}
	var req generateSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := h.storyService.StartGeneration(c.Request.Context(), userID, storyID, req.IsVertical); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// userAndID извлекает user id из контекста и идентификатор ресурса из пути.
func (h *StoryHandler) userAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	return userAndPathID(c)
}

func userAndPathID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: malformed id", models.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
