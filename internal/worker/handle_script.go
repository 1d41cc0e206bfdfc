package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

// handleGuidedStory генерирует сценарий по описанию пользователя и сохраняет
// его в историю. Ошибка генерации записывается в историю, сообщение при этом
// подтверждается.
func (h *Handler) handleGuidedStory(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(zap.String("story_id", payload.StoryID.String()))

	script, err := h.textGen.GenerateText(ctx, service.GuidedStorySystemPrompt, payload.Description)
	if err != nil {
		log.Error("Guided story generation failed", zap.Error(err))
		return h.markStoryError(ctx, payload.StoryID, "script generation failed")
	}

	if err := h.stories.UpdateScript(ctx, payload.StoryID, script, models.StatusCompleted); err != nil {
		return fmt.Errorf("failed to save generated script: %w", err)
	}
	log.Info("Guided story script saved", zap.Int("script_len", len(script)))
	return nil
}

// handleRefineScript перерабатывает сценарий истории по инструкции пользователя.
func (h *Handler) handleRefineScript(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(zap.String("story_id", payload.StoryID.String()))

	story, err := h.stories.GetStoryByID(ctx, payload.StoryID)
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}

	userInput := fmt.Sprintf("Instruction: %s\n\nScript:\n%s", payload.Instruction, story.Script)
	refined, err := h.textGen.GenerateText(ctx, service.RefineScriptSystemPrompt, userInput)
	if err != nil {
		log.Error("Script refinement failed", zap.Error(err))
		return h.markStoryError(ctx, payload.StoryID, "script refinement failed")
	}

	if err := h.stories.UpdateScript(ctx, payload.StoryID, refined, models.StatusCompleted); err != nil {
		return fmt.Errorf("failed to save refined script: %w", err)
	}
	log.Info("Refined script saved", zap.Int("script_len", len(refined)))
	return nil
}

// markStoryError записывает исход-ошибку в историю. Возвращает ошибку, только
// если записать исход не удалось: тогда сообщение уйдет в DLQ.
func (h *Handler) markStoryError(ctx context.Context, storyID uuid.UUID, details string) error {
	if err := h.stories.UpdateStatus(ctx, storyID, models.StatusError, &details); err != nil {
		return fmt.Errorf("failed to record story error: %w", err)
	}
	return nil
}
