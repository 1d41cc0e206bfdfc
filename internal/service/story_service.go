package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
)

// StoryService реализует пользовательские операции над историями и сегментами.
// Дорогие этапы (LLM, синтез изображений) сервис не выполняет сам, а ставит
// задачи в очередь; синхронно выполняются только проверки, списание кредитов
// и переводы статусов.
type StoryService struct {
	users     interfaces.UserRepository
	stories   interfaces.StoryRepository
	segments  interfaces.SegmentRepository
	blobStore interfaces.BlobStore
	publisher messaging.TaskPublisher
	tracker   *CompletionTracker
	logger    *zap.Logger
}

// NewStoryService создает новый экземпляр StoryService.
func NewStoryService(
	users interfaces.UserRepository,
	stories interfaces.StoryRepository,
	segments interfaces.SegmentRepository,
	blobStore interfaces.BlobStore,
	publisher messaging.TaskPublisher,
	tracker *CompletionTracker,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		users:     users,
		stories:   stories,
		segments:  segments,
		blobStore: blobStore,
		publisher: publisher,
		tracker:   tracker,
		logger:    logger.Named("story_service"),
	}
}

// CreateStory создает пустой черновик истории.
func (s *StoryService) CreateStory(ctx context.Context, userID uuid.UUID, title string) (*models.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}

	story := &models.Story{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Status: models.StatusDraft,
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	return story, nil
}

// CreateGuidedStory создает историю и ставит задачу генерации сценария по
// описанию. Списывает один кредит за обращение к текстовой модели.
func (s *StoryService) CreateGuidedStory(ctx context.Context, userID uuid.UUID, title, description string) (*models.Story, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", models.ErrInvalidInput)
	}

	if err := s.users.DebitCredits(ctx, userID, models.CreditCostChatCompletion); err != nil {
		return nil, err
	}

	story := &models.Story{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Status: models.StatusProcessing,
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	payload := messaging.GenerationTaskPayload{
		TaskID:      uuid.New().String(),
		Type:        messaging.TaskTypeGuidedStory,
		UserID:      userID,
		StoryID:     story.ID,
		Description: description,
	}
	if err := s.publisher.PublishTask(ctx, payload); err != nil {
		s.logger.Error("Failed to publish guided story task", zap.String("story_id", story.ID.String()), zap.Error(err))
		s.markError(ctx, story.ID, "failed to enqueue script generation")
		return nil, fmt.Errorf("failed to publish guided story task: %w", err)
	}

	s.logger.Info("Guided story queued",
		zap.String("story_id", story.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return story, nil
}

// GetStory возвращает историю пользователя вместе с ее сегментами.
func (s *StoryService) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, []models.Segment, error) {
	story, err := s.getOwnedStory(ctx, userID, storyID)
	if err != nil {
		return nil, nil, err
	}
	segments, err := s.segments.ListSegmentsByStory(ctx, storyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return story, segments, nil
}

// ListStories возвращает все истории пользователя.
func (s *StoryService) ListStories(ctx context.Context, userID uuid.UUID) ([]models.Story, error) {
	return s.stories.ListStoriesByUser(ctx, userID)
}

// UpdateScript сохраняет отредактированный вручную сценарий.
// Правка во время генерации запрещена.
func (s *StoryService) UpdateScript(ctx context.Context, userID, storyID uuid.UUID, script string) error {
	story, err := s.getOwnedStory(ctx, userID, storyID)
	if err != nil {
		return err
	}
	if err := ensureNotBusy(story); err != nil {
		return err
	}
	if err := s.stories.UpdateScript(ctx, storyID, script, models.StatusCompleted); err != nil {
		return fmt.Errorf("failed to update script: %w", err)
	}
	return nil
}

// RefineScript ставит задачу переработки сценария по инструкции пользователя.
// Списывает один кредит за обращение к текстовой модели.
func (s *StoryService) RefineScript(ctx context.Context, userID, storyID uuid.UUID, instruction string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return fmt.Errorf("%w: instruction is required", models.ErrInvalidInput)
	}

	story, err := s.getOwnedStory(ctx, userID, storyID)
	if err != nil {
		return err
	}
	if err := ensureNotBusy(story); err != nil {
		return err
	}
	if strings.TrimSpace(story.Script) == "" {
		return models.ErrEmptyScript
	}

	if err := s.users.DebitCredits(ctx, userID, models.CreditCostChatCompletion); err != nil {
		return err
	}
	if err := s.stories.UpdateStatus(ctx, storyID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("failed to update story status: %w", err)
	}

	payload := messaging.GenerationTaskPayload{
		TaskID:      uuid.New().String(),
		Type:        messaging.TaskTypeRefineScript,
		UserID:      userID,
		StoryID:     storyID,
		Instruction: instruction,
	}
	if err := s.publisher.PublishTask(ctx, payload); err != nil {
		s.logger.Error("Failed to publish refine task", zap.String("story_id", storyID.String()), zap.Error(err))
		s.markError(ctx, storyID, "failed to enqueue script refinement")
		return fmt.Errorf("failed to publish refine task: %w", err)
	}
	return nil
}

// StartGeneration запускает раунд генерации раскадровки: фиксирует ориентацию,
// списывает кредит за стилевой контекст и ставит fan-out задачу. Нарезка
// сценария, создание сегментов и выставление счетчика происходят в воркере.
func (s *StoryService) StartGeneration(ctx context.Context, userID, storyID uuid.UUID, isVertical bool) error {
	story, err := s.getOwnedStory(ctx, userID, storyID)
	if err != nil {
		return err
	}
	if err := ensureNotBusy(story); err != nil {
		return err
	}
	if strings.TrimSpace(story.Script) == "" {
		return models.ErrEmptyScript
	}

	if err := s.stories.UpdateOrientation(ctx, storyID, isVertical); err != nil {
		return fmt.Errorf("failed to update orientation: %w", err)
	}
	if err := s.users.DebitCredits(ctx, userID, models.CreditCostChatCompletion); err != nil {
		return err
	}
	if err := s.stories.UpdateStatus(ctx, storyID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("failed to update story status: %w", err)
	}

	payload := messaging.GenerationTaskPayload{
		TaskID:  uuid.New().String(),
		Type:    messaging.TaskTypeDispatch,
		UserID:  userID,
		StoryID: storyID,
	}
	if err := s.publisher.PublishTask(ctx, payload); err != nil {
		s.logger.Error("Failed to publish dispatch task", zap.String("story_id", storyID.String()), zap.Error(err))
		s.markError(ctx, storyID, "failed to enqueue segment generation")
		return fmt.Errorf("failed to publish dispatch task: %w", err)
	}

	s.logger.Info("Segment generation round queued",
		zap.String("story_id", storyID.String()),
		zap.Bool("is_vertical", isVertical),
	)
	return nil
}

// DeleteStory удаляет историю пользователя вместе с сегментами.
func (s *StoryService) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	if _, err := s.getOwnedStory(ctx, userID, storyID); err != nil {
		return err
	}
	if err := s.stories.DeleteStory(ctx, storyID); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}

// GenerateSegmentImage перегенерирует изображение одного сегмента по его
// сохраненному промпту. Задача ставится вне fan-out раунда и счетчик
// завершения не трогает. Списывает кредиты за синтез изображения.
func (s *StoryService) GenerateSegmentImage(ctx context.Context, userID, segmentID uuid.UUID) error {
	segment, story, err := s.getOwnedSegment(ctx, userID, segmentID)
	if err != nil {
		return err
	}
	if segment.IsGenerating {
		return models.ErrGenerationInProgress
	}
	if segment.Prompt == nil || strings.TrimSpace(*segment.Prompt) == "" {
		return models.ErrPromptMissing
	}

	if err := s.users.DebitCredits(ctx, userID, models.CreditCostImageGeneration); err != nil {
		return err
	}

	generating := true
	clearError := ""
	if err := s.segments.UpdateSegment(ctx, segmentID, models.SegmentUpdate{
		IsGenerating: &generating,
		Error:        &clearError,
	}); err != nil {
		return fmt.Errorf("failed to mark segment as generating: %w", err)
	}

	payload := messaging.GenerationTaskPayload{
		TaskID:    uuid.New().String(),
		Type:      messaging.TaskTypeSegmentImage,
		UserID:    userID,
		StoryID:   story.ID,
		SegmentID: segmentID,
		FanOut:    false,
	}
	if err := s.publisher.PublishTask(ctx, payload); err != nil {
		s.logger.Error("Failed to publish segment image task", zap.String("segment_id", segmentID.String()), zap.Error(err))
		notGenerating := false
		publishErr := "failed to enqueue image generation"
		_ = s.segments.UpdateSegment(ctx, segmentID, models.SegmentUpdate{
			IsGenerating: &notGenerating,
			Error:        &publishErr,
		})
		return fmt.Errorf("failed to publish segment image task: %w", err)
	}
	return nil
}

// UpdateSegmentPrompt сохраняет отредактированный вручную промпт сегмента.
func (s *StoryService) UpdateSegmentPrompt(ctx context.Context, userID, segmentID uuid.UUID, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("%w: prompt is required", models.ErrInvalidInput)
	}
	if _, _, err := s.getOwnedSegment(ctx, userID, segmentID); err != nil {
		return err
	}
	if err := s.segments.UpdateSegment(ctx, segmentID, models.SegmentUpdate{Prompt: &prompt}); err != nil {
		return fmt.Errorf("failed to update segment prompt: %w", err)
	}
	return nil
}

// DeleteSegment удаляет сегмент с переиндексацией порядка. Если сегмент был
// в полете внутри активного раунда, его исход уже никогда не придет, поэтому
// выполняется компенсирующее уведомление трекера.
func (s *StoryService) DeleteSegment(ctx context.Context, userID, segmentID uuid.UUID) error {
	_, story, err := s.getOwnedSegment(ctx, userID, segmentID)
	if err != nil {
		return err
	}

	deleted, err := s.segments.DeleteSegment(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}

	if deleted.IsGenerating && story.Status == models.StatusGeneratingSegments {
		s.logger.Info("Deleted in-flight segment, compensating round counter",
			zap.String("story_id", story.ID.String()),
			zap.String("segment_id", segmentID.String()),
		)
		if _, _, err := s.tracker.NotifyOutcome(ctx, story.ID); err != nil {
			return fmt.Errorf("failed to compensate generation counter: %w", err)
		}
	}
	return nil
}

// SegmentImageURLs возвращает URL полного изображения и превью сегмента.
func (s *StoryService) SegmentImageURLs(ctx context.Context, userID, segmentID uuid.UUID) (imageURL, previewURL string, err error) {
	segment, _, err := s.getOwnedSegment(ctx, userID, segmentID)
	if err != nil {
		return "", "", err
	}
	if segment.ImageRef == nil {
		return "", "", models.ErrNotFound
	}
	imageURL, err = s.blobStore.GetURL(ctx, *segment.ImageRef)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve image url: %w", err)
	}
	if segment.PreviewImageRef != nil {
		previewURL, err = s.blobStore.GetURL(ctx, *segment.PreviewImageRef)
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve preview url: %w", err)
		}
	}
	return imageURL, previewURL, nil
}

// getOwnedStory загружает историю и проверяет, что она принадлежит пользователю.
func (s *StoryService) getOwnedStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.stories.GetStoryByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}
	return story, nil
}

// getOwnedSegment загружает сегмент вместе с историей и проверяет владельца.
func (s *StoryService) getOwnedSegment(ctx context.Context, userID, segmentID uuid.UUID) (*models.Segment, *models.Story, error) {
	segment, err := s.segments.GetSegmentByID(ctx, segmentID)
	if err != nil {
		return nil, nil, err
	}
	story, err := s.stories.GetStoryByID(ctx, segment.StoryID)
	if err != nil {
		return nil, nil, err
	}
	if story.UserID != userID {
		return nil, nil, models.ErrForbidden
	}
	return segment, story, nil
}

// markError переводит историю в error с кратким описанием. Сбой самой записи
// только логируется: вызывающий уже возвращает первичную ошибку.
func (s *StoryService) markError(ctx context.Context, storyID uuid.UUID, details string) {
	if err := s.stories.UpdateStatus(ctx, storyID, models.StatusError, &details); err != nil &&
		!errors.Is(err, models.ErrStoryNotFound) {
		s.logger.Error("Failed to mark story as error", zap.String("story_id", storyID.String()), zap.Error(err))
	}
}

// ensureNotBusy запрещает правки и новые запуски, пока история занята
// фоновой обработкой.
func ensureNotBusy(story *models.Story) error {
	switch story.Status {
	case models.StatusGeneratingSegments:
		return models.ErrGenerationInProgress
	case models.StatusProcessing:
		return models.ErrStoryBusy
	default:
		return nil
	}
}
