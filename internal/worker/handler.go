package worker

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/service"
)

// Handler обрабатывает задачи генерации из общей очереди. Тип задачи
// определяется полем Type полезной нагрузки.
type Handler struct {
	logger    *zap.Logger
	users     interfaces.UserRepository
	stories   interfaces.StoryRepository
	segments  interfaces.SegmentRepository
	textGen   interfaces.TextGenerator
	imageGen  interfaces.ImageGenerator
	blobStore interfaces.BlobStore
	publisher messaging.TaskPublisher
	tracker   *service.CompletionTracker
}

var _ messaging.DeliveryHandler = (*Handler)(nil)

// NewHandler создает новый экземпляр Handler.
func NewHandler(
	logger *zap.Logger,
	users interfaces.UserRepository,
	stories interfaces.StoryRepository,
	segments interfaces.SegmentRepository,
	textGen interfaces.TextGenerator,
	imageGen interfaces.ImageGenerator,
	blobStore interfaces.BlobStore,
	publisher messaging.TaskPublisher,
	tracker *service.CompletionTracker,
) *Handler {
	return &Handler{
		logger:    logger.Named("task_handler"),
		users:     users,
		stories:   stories,
		segments:  segments,
		textGen:   textGen,
		imageGen:  imageGen,
		blobStore: blobStore,
		publisher: publisher,
		tracker:   tracker,
	}
}

// HandleDelivery обрабатывает одно сообщение очереди.
// Возвращает true (ack), когда исход задачи записан в базу, в том числе
// исход-ошибка. false (nack в DLQ) возвращается только когда исход записать
// не удалось и повторная доставка сообщения не поможет.
func (h *Handler) HandleDelivery(ctx context.Context, msg amqp.Delivery) bool {
	var payload messaging.GenerationTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		h.logger.Error("Failed to unmarshal task payload, rejecting message",
			zap.String("correlation_id", msg.CorrelationId),
			zap.Error(err),
		)
		return false
	}
	if !messaging.IsValidTaskType(payload.Type) {
		h.logger.Error("Unknown task type, rejecting message",
			zap.String("type", string(payload.Type)),
			zap.String("task_id", payload.TaskID),
		)
		return false
	}

	log := h.logger.With(
		zap.String("task_id", payload.TaskID),
		zap.String("type", string(payload.Type)),
		zap.String("story_id", payload.StoryID.String()),
	)
	log.Info("Processing generation task")
	metricsTaskReceived(string(payload.Type))
	startTime := time.Now()

	var err error
	switch payload.Type {
	case messaging.TaskTypeGuidedStory:
		err = h.handleGuidedStory(ctx, payload)
	case messaging.TaskTypeRefineScript:
		err = h.handleRefineScript(ctx, payload)
	case messaging.TaskTypeDispatch:
		err = h.handleDispatch(ctx, payload)
	case messaging.TaskTypeSegmentPrompt:
		err = h.handleSegmentPrompt(ctx, payload)
	case messaging.TaskTypeSegmentImage:
		err = h.handleSegmentImage(ctx, payload)
	}

	duration := time.Since(startTime)
	if err != nil {
		log.Error("Task processing failed", zap.Duration("duration", duration), zap.Error(err))
		metricsTaskFailed(string(payload.Type), "handler_error", duration)
		return false
	}

	log.Info("Task processed", zap.Duration("duration", duration))
	metricsTaskSucceeded(string(payload.Type), duration)
	return true
}

// notifyTracker передает исход сегмента трекеру раунда и учитывает
// финализацию в метриках.
func (h *Handler) notifyTracker(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	status, finalized, err := h.tracker.NotifyOutcome(ctx, payload.StoryID)
	if err != nil {
		return err
	}
	if finalized {
		metricsRoundFinalized(string(status))
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
