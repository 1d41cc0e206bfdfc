package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

// handleDispatch выполняет fan-out раунда генерации: строит стилевой контекст,
// нарезает сценарий на сегменты, выставляет счетчик раунда и ставит задачу
// промпта для каждого сегмента. Счетчик выставляется строго до постановки
// первой задачи, иначе быстрый сегмент мог бы финализировать раунд раньше
// времени.
func (h *Handler) handleDispatch(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(zap.String("story_id", payload.StoryID.String()))

	story, err := h.stories.GetStoryByID(ctx, payload.StoryID)
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}

	storyContext, err := h.textGen.GenerateText(ctx, service.ContextSystemPrompt, story.Script)
	if err != nil {
		log.Error("Context summarization failed", zap.Error(err))
		return h.markStoryError(ctx, payload.StoryID, "context summarization failed")
	}
	if err := h.stories.UpdateContext(ctx, payload.StoryID, storyContext); err != nil {
		return fmt.Errorf("failed to save story context: %w", err)
	}

	texts := service.SplitScript(story.Script)
	if len(texts) == 0 {
		// Пустая нарезка: раунд нечем наполнять, история сразу завершена.
		log.Warn("Script produced no segments, completing round immediately")
		if err := h.stories.UpdateStatus(ctx, payload.StoryID, models.StatusCompleted, nil); err != nil {
			return fmt.Errorf("failed to complete empty round: %w", err)
		}
		metricsRoundFinalized(string(models.StatusCompleted))
		return nil
	}

	if err := h.stories.BeginGenerationRound(ctx, payload.StoryID, len(texts)); err != nil {
		if errors.Is(err, models.ErrGenerationInProgress) {
			// Повторная доставка dispatch-сообщения: раунд уже запущен, но
			// воркер мог упасть до постановки всех сегментов. Досоздаем
			// недостающие, чтобы счетчик раунда сошелся.
			log.Warn("Generation round already active, reconciling redelivered dispatch")
			return h.reconcileDispatch(ctx, payload, texts, storyContext)
		}
		return fmt.Errorf("failed to begin generation round: %w", err)
	}
	log.Info("Generation round started", zap.Int("segment_count", len(texts)))

	for i, text := range texts {
		if err := h.dispatchSegment(ctx, payload, i, text, storyContext); err != nil {
			return err
		}
	}
	return nil
}

// reconcileDispatch доводит повторно доставленный dispatch до сходимости:
// ставит конвейеры только для сегментов, которых еще нет в раунде. Уже
// существующие сегменты не трогаем: их задачи либо в очереди, либо исход уже
// записан, и повторная постановка продублировала бы сигнал трекеру.
func (h *Handler) reconcileDispatch(ctx context.Context, payload messaging.GenerationTaskPayload, texts []string, storyContext string) error {
	log := h.logger.With(zap.String("story_id", payload.StoryID.String()))

	existing, err := h.segments.ListSegmentsByStory(ctx, payload.StoryID)
	if err != nil {
		return fmt.Errorf("failed to list segments for redelivered dispatch: %w", err)
	}
	present := make(map[int]bool, len(existing))
	for _, seg := range existing {
		present[seg.Order] = true
	}

	dispatched := 0
	for i, text := range texts {
		if present[i] {
			continue
		}
		if err := h.dispatchSegment(ctx, payload, i, text, storyContext); err != nil {
			return err
		}
		dispatched++
	}
	log.Info("Redelivered dispatch reconciled",
		zap.Int("existing_segments", len(existing)),
		zap.Int("dispatched_missing", dispatched))
	return nil
}

// dispatchSegment создает один сегмент раунда, списывает кредиты его конвейера
// и ставит задачу синтеза промпта. Сбой кредитов или постановки записывается
// как исход-ошибка сегмента с немедленным уведомлением трекера: счетчик
// раунда обязан сойтись даже для сегментов, не дошедших до очереди.
func (h *Handler) dispatchSegment(ctx context.Context, payload messaging.GenerationTaskPayload, order int, text, storyContext string) error {
	log := h.logger.With(zap.String("story_id", payload.StoryID.String()), zap.Int("order", order))

	segment := &models.Segment{
		ID:           uuid.New(),
		StoryID:      payload.StoryID,
		Order:        order,
		Text:         text,
		IsGenerating: true,
	}
	if err := h.segments.CreateSegment(ctx, segment); err != nil {
		return fmt.Errorf("failed to create segment %d: %w", order, err)
	}

	pipelineCost := models.CreditCostChatCompletion + models.CreditCostImageGeneration
	if err := h.users.DebitCredits(ctx, payload.UserID, pipelineCost); err != nil {
		if !errors.Is(err, models.ErrInsufficientCredits) {
			return fmt.Errorf("failed to debit credits for segment %d: %w", order, err)
		}
		log.Warn("Insufficient credits, failing segment")
		return h.failSegment(ctx, payload, segment.ID, "insufficient credits", true)
	}

	task := messaging.GenerationTaskPayload{
		TaskID:    uuid.New().String(),
		Type:      messaging.TaskTypeSegmentPrompt,
		UserID:    payload.UserID,
		StoryID:   payload.StoryID,
		SegmentID: segment.ID,
		Context:   storyContext,
		FanOut:    true,
	}
	if err := h.publisher.PublishTask(ctx, task); err != nil {
		log.Error("Failed to enqueue segment prompt task", zap.Error(err))
		return h.failSegment(ctx, payload, segment.ID, "failed to enqueue prompt generation", true)
	}
	return nil
}

// failSegment записывает исход-ошибку сегмента и, для сегментов активного
// раунда, ровно один раз уведомляет трекер.
func (h *Handler) failSegment(ctx context.Context, payload messaging.GenerationTaskPayload, segmentID uuid.UUID, details string, fanOut bool) error {
	update := models.SegmentUpdate{
		IsGenerating: ptr(false),
		Error:        &details,
	}
	if err := h.segments.UpdateSegment(ctx, segmentID, update); err != nil {
		return fmt.Errorf("failed to record segment failure: %w", err)
	}
	if !fanOut {
		return nil
	}
	if err := h.notifyTracker(ctx, payload); err != nil {
		return fmt.Errorf("failed to notify completion tracker: %w", err)
	}
	return nil
}
