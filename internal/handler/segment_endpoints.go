package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyboard-server/internal/models"
)

// GenerateImage обрабатывает POST /api/segments/:id/generate-image —
// ручную перегенерацию изображения по сохраненному промпту.
func (h *StoryHandler) GenerateImage(c *gin.Context) {
	userID, segmentID, ok := h.userAndID(c)
	if !ok {
		return
	}
	if err := h.storyService.GenerateSegmentImage(c.Request.Context(), userID, segmentID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// UpdatePrompt обрабатывает PUT /api/segments/:id/prompt.
func (h *StoryHandler) UpdatePrompt(c *gin.Context) {
	userID, segmentID, ok := h.userAndID(c)
	if !ok {
		return
	}
	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	if err := h.storyService.UpdateSegmentPrompt(c.Request.Context(), userID, segmentID, req.Prompt); err != nil {
		handleServiceError(c, err)
		return
	}
	if req.Regenerate {
		if err := h.storyService.GenerateSegmentImage(c.Request.Context(), userID, segmentID); err != nil {
			handleServiceError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteSegment обрабатывает DELETE /api/segments/:id.
func (h *StoryHandler) DeleteSegment(c *gin.Context) {
	userID, segmentID, ok := h.userAndID(c)
	if !ok {
		return
	}
	if err := h.storyService.DeleteSegment(c.Request.Context(), userID, segmentID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImageURL обрабатывает GET /api/segments/:id/image-url.
func (h *StoryHandler) ImageURL(c *gin.Context) {
	userID, segmentID, ok := h.userAndID(c)
	if !ok {
		return
	}
	imageURL, previewURL, err := h.storyService.SegmentImageURLs(c.Request.Context(), userID, segmentID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, imageURLResponse{ImageURL: imageURL, PreviewURL: previewURL})
}
