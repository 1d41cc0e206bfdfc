package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// CompletionTracker закрывает раунд fan-out генерации. Каждый сегмент раунда
// ровно один раз уведомляет трекер об исходе (успех или ошибка), трекер
// списывает общий счетчик pending_segments, и тот, чье списание обнулило
// счетчик, финализирует историю. Декремент и финализация идемпотентны:
// повторные и посторонние сигналы превращаются в no-op на уровне SQL.
type CompletionTracker struct {
	stories       interfaces.StoryRepository
	segments      interfaces.SegmentRepository
	logger        *zap.Logger
	retryAttempts int
}

// NewCompletionTracker создает новый экземпляр CompletionTracker.
func NewCompletionTracker(
	stories interfaces.StoryRepository,
	segments interfaces.SegmentRepository,
	logger *zap.Logger,
	retryAttempts int,
) *CompletionTracker {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &CompletionTracker{
		stories:       stories,
		segments:      segments,
		logger:        logger.Named("completion_tracker"),
		retryAttempts: retryAttempts,
	}
}

// NotifyOutcome сообщает трекеру, что один сегмент раунда завершил работу.
// Исход сегмента (успех или ошибка) к этому моменту уже записан в его строку.
// Когда счетчик достигает нуля, история переводится в completed либо error
// со сводкой вида "N segment(s) failed"; в этом случае возвращается
// выставленный терминальный статус и finalized = true.
func (t *CompletionTracker) NotifyOutcome(ctx context.Context, storyID uuid.UUID) (models.StoryStatus, bool, error) {
	log := t.logger.With(zap.String("story_id", storyID.String()))

	var remaining int
	var decremented bool
	err := t.withRetry(ctx, "decrement pending segments", func() error {
		var innerErr error
		remaining, decremented, innerErr = t.stories.DecrementPendingSegments(ctx, storyID)
		return innerErr
	})
	if err != nil {
		log.Error("Failed to decrement pending segments counter", zap.Error(err))
		return "", false, fmt.Errorf("failed to decrement pending segments: %w", err)
	}

	if !decremented {
		// Нет активного раунда либо счетчик уже на нуле: поздний или
		// посторонний сигнал, финализировать нечего.
		log.Debug("Completion signal ignored, no active generation round")
		return "", false, nil
	}

	log.Debug("Pending segments decremented", zap.Int("remaining", remaining))
	if remaining > 0 {
		return "", false, nil
	}

	return t.finalize(ctx, storyID, log)
}

// finalize вычисляет итог раунда по сегментам истории и выставляет
// терминальный статус.
func (t *CompletionTracker) finalize(ctx context.Context, storyID uuid.UUID, log *zap.Logger) (models.StoryStatus, bool, error) {
	var failed int
	err := t.withRetry(ctx, "count failed segments", func() error {
		var innerErr error
		failed, innerErr = t.segments.CountFailed(ctx, storyID)
		return innerErr
	})
	if err != nil {
		log.Error("Failed to count failed segments", zap.Error(err))
		return "", false, fmt.Errorf("failed to count failed segments: %w", err)
	}

	status := models.StatusCompleted
	var details *string
	if failed > 0 {
		status = models.StatusError
		summary := fmt.Sprintf("%d segment(s) failed", failed)
		details = &summary
	}

	err = t.withRetry(ctx, "finalize generation round", func() error {
		return t.stories.FinalizeGenerationRound(ctx, storyID, status, details)
	})
	if err != nil {
		log.Error("Failed to finalize generation round", zap.Error(err))
		return "", false, fmt.Errorf("failed to finalize generation round: %w", err)
	}

	log.Info("Generation round finalized",
		zap.String("status", string(status)),
		zap.Int("failed_segments", failed),
	)
	return status, true, nil
}

// withRetry повторяет операцию над хранилищем при транзиентных сбоях.
// Потерянный декремент навсегда заморозил бы историю в generating_segments,
// поэтому запись исхода агрессивно ретраится до передачи сообщения в DLQ.
func (t *CompletionTracker) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= t.retryAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		t.logger.Warn("Tracker operation failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", t.retryAttempts),
			zap.Error(lastErr),
		)
		if attempt < t.retryAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
