package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// Compile-time check to ensure pgStoryRepository implements StoryRepository
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

const storyColumns = `id, user_id, title, script, status, is_vertical, context, error_details, pending_segments, created_at, updated_at`

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a new PostgreSQL-backed StoryRepository.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

func scanStory(row pgx.Row, story *models.Story) error {
	return row.Scan(
		&story.ID, &story.UserID, &story.Title, &story.Script, &story.Status,
		&story.IsVertical, &story.Context, &story.ErrorDetails, &story.PendingSegments,
		&story.CreatedAt, &story.UpdatedAt,
	)
}

// CreateStory inserts a new story.
func (r *pgStoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	query := `INSERT INTO stories (user_id, title, script, status, is_vertical)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, story.UserID, story.Title, story.Script, story.Status, story.IsVertical).
		Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create story", zap.Error(err), zap.String("userID", story.UserID.String()))
		return fmt.Errorf("failed to create story: %w", err)
	}
	r.logger.Info("Story created", zap.String("storyID", story.ID.String()), zap.String("userID", story.UserID.String()))
	return nil
}

// GetStoryByID retrieves a story by its ID.
func (r *pgStoryRepository) GetStoryByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	story := &models.Story{}
	if err := scanStory(r.db.QueryRow(ctx, query, id), story); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.Error(err), zap.String("storyID", id.String()))
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

// ListStoriesByUser возвращает истории пользователя, новые первыми.
func (r *pgStoryRepository) ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE user_id = $1 ORDER BY created_at DESC`
	var stories []models.Story
	if err := pgxscan.Select(ctx, r.db, &stories, query, userID); err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

// DeleteStory удаляет историю (сегменты каскадом).
func (r *pgStoryRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story deleted", zap.String("storyID", id.String()))
	return nil
}

// UpdateScript обновляет текст сценария и статус.
func (r *pgStoryRepository) UpdateScript(ctx context.Context, id uuid.UUID, script string, status models.StoryStatus) error {
	query := `UPDATE stories SET script = $2, status = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, script, status)
	if err != nil {
		r.logger.Error("Failed to update story script", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to update story script: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// UpdateOrientation сохраняет ориентацию будущих изображений.
func (r *pgStoryRepository) UpdateOrientation(ctx context.Context, id uuid.UUID, isVertical bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE stories SET is_vertical = $2, updated_at = NOW() WHERE id = $1`, id, isVertical)
	if err != nil {
		r.logger.Error("Failed to update story orientation", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to update story orientation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// UpdateContext сохраняет сгенерированный стилевой контекст раунда.
func (r *pgStoryRepository) UpdateContext(ctx context.Context, id uuid.UUID, storyContext string) error {
	tag, err := r.db.Exec(ctx, `UPDATE stories SET context = $2, updated_at = NOW() WHERE id = $1`, id, storyContext)
	if err != nil {
		r.logger.Error("Failed to update story context", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to update story context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// UpdateStatus переводит историю в новый статус. errorDetails == nil очищает ошибку.
func (r *pgStoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error {
	query := `UPDATE stories SET status = $2, error_details = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, errorDetails)
	if err != nil {
		r.logger.Error("Failed to update story status", zap.Error(err),
			zap.String("storyID", id.String()), zap.String("newStatus", string(status)))
		return fmt.Errorf("failed to update story status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story status updated",
		zap.String("storyID", id.String()), zap.String("newStatus", string(status)))
	return nil
}

// BeginGenerationRound атомарно открывает раунд генерации: статус и счетчик
// выставляются одним UPDATE, повторное открытие активного раунда отсекается
// условием на статус.
func (r *pgStoryRepository) BeginGenerationRound(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE stories
	          SET status = 'generating_segments', pending_segments = $2, error_details = NULL, updated_at = NOW()
	          WHERE id = $1 AND status <> 'generating_segments'`
	tag, err := r.db.Exec(ctx, query, id, total)
	if err != nil {
		r.logger.Error("Failed to begin generation round", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to begin generation round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		story, getErr := r.GetStoryByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if story.Status == models.StatusGeneratingSegments {
			return models.ErrGenerationInProgress
		}
		return models.ErrStoryNotFound
	}
	r.logger.Info("Generation round started", zap.String("storyID", id.String()), zap.Int("totalSegments", total))
	return nil
}

// DecrementPendingSegments — единственная строго атомарная операция подсистемы:
// декремент и проверка условий выполняются одним UPDATE, поэтому параллельные
// завершения сегментов не могут ни продекрементировать лишнего, ни потерять сигнал.
func (r *pgStoryRepository) DecrementPendingSegments(ctx context.Context, id uuid.UUID) (int, bool, error) {
	query := `UPDATE stories
	          SET pending_segments = pending_segments - 1, updated_at = NOW()
	          WHERE id = $1 AND status = 'generating_segments' AND pending_segments > 0
	          RETURNING pending_segments`
	var remaining int
	err := r.db.QueryRow(ctx, query, id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Раунд уже финализирован либо сигнал посторонний — no-op.
			return 0, false, nil
		}
		r.logger.Error("Failed to decrement pending segments", zap.Error(err), zap.String("storyID", id.String()))
		return 0, false, fmt.Errorf("failed to decrement pending segments: %w", err)
	}
	return remaining, true, nil
}

// FinalizeGenerationRound выставляет терминальный статус и очищает счетчик.
func (r *pgStoryRepository) FinalizeGenerationRound(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error {
	query := `UPDATE stories
	          SET status = $2, error_details = $3, pending_segments = NULL, updated_at = NOW()
	          WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, errorDetails)
	if err != nil {
		r.logger.Error("Failed to finalize generation round", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to finalize generation round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Generation round finalized",
		zap.String("storyID", id.String()), zap.String("status", string(status)))
	return nil
}

// MarkStaleAsError помечает ошибкой истории, застрявшие в нетерминальных статусах.
func (r *pgStoryRepository) MarkStaleAsError(ctx context.Context, statuses []models.StoryStatus, olderThan time.Time, details string) (int64, error) {
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	query := `UPDATE stories
	          SET status = 'error', error_details = $1, pending_segments = NULL, updated_at = NOW()
	          WHERE status = ANY($2::story_status[]) AND updated_at < $3`
	tag, err := r.db.Exec(ctx, query, details, pq.Array(statusStrings), olderThan)
	if err != nil {
		r.logger.Error("Failed to mark stale stories", zap.Error(err))
		return 0, fmt.Errorf("failed to mark stale stories: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Warn("Stale stories marked as error", zap.Int64("count", tag.RowsAffected()))
	}
	return tag.RowsAffected(), nil
}
