package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/imaging"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

// handleSegmentPrompt синтезирует промпт изображения для одного сегмента и
// ставит задачу синтеза самого изображения. Исход-ошибка записывается в
// сегмент и передается трекеру.
func (h *Handler) handleSegmentPrompt(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(
		zap.String("story_id", payload.StoryID.String()),
		zap.String("segment_id", payload.SegmentID.String()),
	)

	segment, err := h.segments.GetSegmentByID(ctx, payload.SegmentID)
	if err != nil {
		if payload.FanOut {
			// Сегмент удален, пока задача ждала в очереди. Компенсирующий
			// декремент уже выполнен при удалении.
			log.Warn("Segment disappeared before prompt generation", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to load segment: %w", err)
	}

	prompt, err := h.textGen.GenerateJSONField(ctx, service.SegmentPromptSystemPrompt(payload.Context), segment.Text, "prompt")
	if err != nil {
		log.Error("Prompt generation failed", zap.Error(err))
		return h.failSegment(ctx, payload, payload.SegmentID, "prompt generation failed", payload.FanOut)
	}

	if err := h.segments.UpdateSegment(ctx, payload.SegmentID, models.SegmentUpdate{Prompt: &prompt}); err != nil {
		return fmt.Errorf("failed to save segment prompt: %w", err)
	}

	task := messaging.GenerationTaskPayload{
		TaskID:    uuid.New().String(),
		Type:      messaging.TaskTypeSegmentImage,
		UserID:    payload.UserID,
		StoryID:   payload.StoryID,
		SegmentID: payload.SegmentID,
		FanOut:    payload.FanOut,
	}
	if err := h.publisher.PublishTask(ctx, task); err != nil {
		log.Error("Failed to enqueue segment image task", zap.Error(err))
		return h.failSegment(ctx, payload, payload.SegmentID, "failed to enqueue image generation", payload.FanOut)
	}
	return nil
}

// handleSegmentImage синтезирует изображение сегмента, строит превью,
// сохраняет оба файла и записывает ссылки. Для задач активного раунда исход,
// каким бы он ни был, ровно один раз передается трекеру.
func (h *Handler) handleSegmentImage(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(
		zap.String("story_id", payload.StoryID.String()),
		zap.String("segment_id", payload.SegmentID.String()),
	)

	segment, err := h.segments.GetSegmentByID(ctx, payload.SegmentID)
	if err != nil {
		if payload.FanOut {
			log.Warn("Segment disappeared before image generation", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to load segment: %w", err)
	}
	story, err := h.stories.GetStoryByID(ctx, payload.StoryID)
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}
	if segment.Prompt == nil || strings.TrimSpace(*segment.Prompt) == "" {
		return h.failSegment(ctx, payload, payload.SegmentID, "image prompt is missing", payload.FanOut)
	}

	imageRef, previewRef, genErr := h.generateAndStore(ctx, story, *segment.Prompt)
	if genErr != nil {
		log.Error("Segment image generation failed", zap.Error(genErr))
		return h.failSegment(ctx, payload, payload.SegmentID, "image generation failed", payload.FanOut)
	}

	update := models.SegmentUpdate{
		ImageRef:        &imageRef,
		PreviewImageRef: &previewRef,
		IsGenerating:    ptr(false),
		Error:           ptr(""),
	}
	if err := h.segments.UpdateSegment(ctx, payload.SegmentID, update); err != nil {
		return fmt.Errorf("failed to save segment image refs: %w", err)
	}
	log.Info("Segment image stored", zap.String("image_ref", imageRef))

	if payload.FanOut {
		if err := h.notifyTracker(ctx, payload); err != nil {
			return fmt.Errorf("failed to notify completion tracker: %w", err)
		}
	}
	return nil
}

// generateAndStore выполняет синтез изображения, даунскейл превью и
// сохранение обоих файлов в хранилище.
func (h *Handler) generateAndStore(ctx context.Context, story *models.Story, prompt string) (imageRef, previewRef string, err error) {
	width, height := story.ImageDimensions()
	imageData, err := h.imageGen.Generate(ctx, prompt, width, height)
	if err != nil {
		return "", "", err
	}

	previewW, previewH := story.PreviewBounds()
	previewData, err := imaging.MakePreview(imageData, previewW, previewH)
	if err != nil {
		return "", "", fmt.Errorf("failed to build preview: %w", err)
	}

	imageRef, err = h.blobStore.Store(ctx, imageData, "image/jpeg")
	if err != nil {
		return "", "", fmt.Errorf("failed to store image: %w", err)
	}
	previewRef, err = h.blobStore.Store(ctx, previewData, "image/jpeg")
	if err != nil {
		return "", "", fmt.Errorf("failed to store preview: %w", err)
	}
	return imageRef, previewRef, nil
}
