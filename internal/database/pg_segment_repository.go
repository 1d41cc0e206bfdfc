package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// Compile-time check to ensure pgSegmentRepository implements SegmentRepository
var _ interfaces.SegmentRepository = (*pgSegmentRepository)(nil)

const segmentColumns = `id, story_id, "order", text, is_generating, image_ref, preview_image_ref, prompt, error, created_at, updated_at`

type pgSegmentRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgSegmentRepository creates a new PostgreSQL-backed SegmentRepository.
func NewPgSegmentRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.SegmentRepository {
	return &pgSegmentRepository{
		db:     db,
		logger: logger.Named("PgSegmentRepo"),
	}
}

func scanSegment(row pgx.Row, seg *models.Segment) error {
	return row.Scan(
		&seg.ID, &seg.StoryID, &seg.Order, &seg.Text, &seg.IsGenerating,
		&seg.ImageRef, &seg.PreviewImageRef, &seg.Prompt, &seg.Error,
		&seg.CreatedAt, &seg.UpdatedAt,
	)
}

// CreateSegment inserts a new segment.
func (r *pgSegmentRepository) CreateSegment(ctx context.Context, segment *models.Segment) error {
	query := `INSERT INTO segments (story_id, "order", text, is_generating)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, segment.StoryID, segment.Order, segment.Text, segment.IsGenerating).
		Scan(&segment.ID, &segment.CreatedAt, &segment.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create segment", zap.Error(err),
			zap.String("storyID", segment.StoryID.String()), zap.Int("order", segment.Order))
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return nil
}

// GetSegmentByID retrieves a segment by its ID.
func (r *pgSegmentRepository) GetSegmentByID(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE id = $1`
	seg := &models.Segment{}
	if err := scanSegment(r.db.QueryRow(ctx, query, id), seg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSegmentNotFound
		}
		r.logger.Error("Failed to get segment", zap.Error(err), zap.String("segmentID", id.String()))
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return seg, nil
}

// ListSegmentsByStory возвращает сегменты истории в порядке следования.
func (r *pgSegmentRepository) ListSegmentsByStory(ctx context.Context, storyID uuid.UUID) ([]models.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE story_id = $1 ORDER BY "order" ASC`
	var segments []models.Segment
	if err := pgxscan.Select(ctx, r.db, &segments, query, storyID); err != nil {
		r.logger.Error("Failed to list segments", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return segments, nil
}

// UpdateSegment применяет частичное обновление сегмента. Несет только заданные
// колонки; повторное применение тех же значений безопасно.
func (r *pgSegmentRepository) UpdateSegment(ctx context.Context, id uuid.UUID, update models.SegmentUpdate) error {
	query := `UPDATE segments SET updated_at = NOW()`
	args := []interface{}{id}
	paramIndex := 2

	if update.ImageRef != nil {
		query += fmt.Sprintf(", image_ref = $%d", paramIndex)
		args = append(args, *update.ImageRef)
		paramIndex++
	}
	if update.PreviewImageRef != nil {
		query += fmt.Sprintf(", preview_image_ref = $%d", paramIndex)
		args = append(args, *update.PreviewImageRef)
		paramIndex++
	}
	if update.Prompt != nil {
		query += fmt.Sprintf(", prompt = $%d", paramIndex)
		args = append(args, *update.Prompt)
		paramIndex++
	}
	if update.IsGenerating != nil {
		query += fmt.Sprintf(", is_generating = $%d", paramIndex)
		args = append(args, *update.IsGenerating)
		paramIndex++
	}
	if update.Error != nil {
		// Пустая строка означает очистку ошибки.
		query += fmt.Sprintf(", error = NULLIF($%d, '')", paramIndex)
		args = append(args, *update.Error)
		paramIndex++
	}

	query += ` WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update segment", zap.Error(err), zap.String("segmentID", id.String()))
		return fmt.Errorf("failed to update segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSegmentNotFound
	}
	return nil
}

// DeleteSegment удаляет сегмент и переиндексирует порядок оставшихся сегментов
// истории в плотную последовательность 0..N-1.
func (r *pgSegmentRepository) DeleteSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	query := `DELETE FROM segments WHERE id = $1
	          RETURNING ` + segmentColumns
	seg := &models.Segment{}
	if err := scanSegment(r.db.QueryRow(ctx, query, id), seg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSegmentNotFound
		}
		r.logger.Error("Failed to delete segment", zap.Error(err), zap.String("segmentID", id.String()))
		return nil, fmt.Errorf("failed to delete segment: %w", err)
	}

	// Смыкаем дыру в нумерации. Уникальный индекс (story_id, "order") отложенный,
	// поэтому сдвиг в рамках одного стейтмента не конфликтует сам с собой.
	reindex := `UPDATE segments SET "order" = "order" - 1, updated_at = NOW()
	            WHERE story_id = $1 AND "order" > $2`
	if _, err := r.db.Exec(ctx, reindex, seg.StoryID, seg.Order); err != nil {
		r.logger.Error("Failed to reindex segments after delete", zap.Error(err),
			zap.String("storyID", seg.StoryID.String()))
		return nil, fmt.Errorf("failed to reindex segments after delete: %w", err)
	}

	r.logger.Info("Segment deleted",
		zap.String("segmentID", id.String()),
		zap.String("storyID", seg.StoryID.String()),
		zap.Int("order", seg.Order))
	return seg, nil
}

// CountFailed возвращает число сегментов истории с непустой ошибкой.
func (r *pgSegmentRepository) CountFailed(ctx context.Context, storyID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM segments WHERE story_id = $1 AND error IS NOT NULL AND error <> ''`
	if err := r.db.QueryRow(ctx, query, storyID).Scan(&count); err != nil {
		r.logger.Error("Failed to count failed segments", zap.Error(err), zap.String("storyID", storyID.String()))
		return 0, fmt.Errorf("failed to count failed segments: %w", err)
	}
	return count, nil
}
