package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storyboard-server/internal/models"
)

// UserRepository — хранилище пользователей и их кредитного баланса.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// DebitCredits атомарно списывает amount кредитов: проверка и вычитание
	// выполняются одним UPDATE. Возвращает models.ErrInsufficientCredits,
	// если баланса не хватает, и models.ErrUserNotFound, если пользователя нет.
	DebitCredits(ctx context.Context, userID uuid.UUID, amount int) error

	// AddCredits начисляет кредиты (биллинговый вебхук, регистрация).
	AddCredits(ctx context.Context, userID uuid.UUID, amount int) error
}

// StoryRepository — хранилище историй.
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id uuid.UUID) (*models.Story, error)
	ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]models.Story, error)
	DeleteStory(ctx context.Context, id uuid.UUID) error

	UpdateScript(ctx context.Context, id uuid.UUID, script string, status models.StoryStatus) error
	UpdateOrientation(ctx context.Context, id uuid.UUID, isVertical bool) error
	UpdateContext(ctx context.Context, id uuid.UUID, storyContext string) error

	// UpdateStatus переводит историю в новый статус. errorDetails == nil очищает
	// колонку error_details.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error

	// BeginGenerationRound атомарно переводит историю в generating_segments,
	// выставляет pending_segments = total и очищает прошлую ошибку.
	// Возвращает models.ErrGenerationInProgress, если раунд уже активен.
	BeginGenerationRound(ctx context.Context, id uuid.UUID, total int) error

	// DecrementPendingSegments атомарно уменьшает счетчик на 1 одним UPDATE,
	// только пока статус generating_segments и счетчик положителен.
	// Возвращает (remaining, true) при успешном списании и (0, false),
	// если условие не выполнено (поздний или посторонний сигнал).
	DecrementPendingSegments(ctx context.Context, id uuid.UUID) (remaining int, decremented bool, err error)

	// FinalizeGenerationRound выставляет терминальный статус раунда и
	// сбрасывает pending_segments в NULL. Идемпотентна.
	FinalizeGenerationRound(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error

	// MarkStaleAsError помечает ошибкой истории, застрявшие в переданных
	// статусах дольше порога. Возвращает число затронутых строк.
	MarkStaleAsError(ctx context.Context, statuses []models.StoryStatus, olderThan time.Time, details string) (int64, error)
}

// SegmentRepository — хранилище сегментов.
type SegmentRepository interface {
	CreateSegment(ctx context.Context, segment *models.Segment) error
	GetSegmentByID(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	ListSegmentsByStory(ctx context.Context, storyID uuid.UUID) ([]models.Segment, error)

	// UpdateSegment применяет частичное обновление. Повторное применение тех же
	// значений безопасно.
	UpdateSegment(ctx context.Context, id uuid.UUID, update models.SegmentUpdate) error

	// DeleteSegment удаляет сегмент и переиндексирует порядок оставшихся
	// сегментов истории в плотную последовательность 0..N-1.
	// Возвращает удаленный сегмент (для компенсирующего декремента).
	DeleteSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error)

	// CountFailed возвращает число сегментов истории с непустой ошибкой.
	CountFailed(ctx context.Context, storyID uuid.UUID) (int, error)
}

// BillingEventRepository — дедупликация событий биллингового вебхука.
type BillingEventRepository interface {
	// MarkProcessed помечает событие обработанным. Возвращает false, если
	// событие уже было обработано ранее (повторная доставка).
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
