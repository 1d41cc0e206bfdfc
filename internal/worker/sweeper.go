package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

const staleRoundDetails = "generation timed out"

// Sweeper периодически помечает ошибкой истории, застрявшие в нефинальных
// статусах: потерянное сообщение или упавший без записи исхода воркер иначе
// оставили бы историю в processing/generating_segments навсегда.
type Sweeper struct {
	stories   interfaces.StoryRepository
	logger    *zap.Logger
	interval  time.Duration
	threshold time.Duration
}

// NewSweeper создает новый Sweeper.
func NewSweeper(stories interfaces.StoryRepository, logger *zap.Logger, interval, threshold time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &Sweeper{
		stories:   stories,
		logger:    logger.Named("stale_sweeper"),
		interval:  interval,
		threshold: threshold,
	}
}

// Run запускает цикл проверки. Блокируется до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Stale story sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("threshold", s.threshold),
	)
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("Stale story sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.threshold)
	statuses := []models.StoryStatus{models.StatusProcessing, models.StatusGeneratingSegments}

	affected, err := s.stories.MarkStaleAsError(ctx, statuses, cutoff, staleRoundDetails)
	if err != nil {
		s.logger.Error("Failed to sweep stale stories", zap.Error(err))
		return
	}
	if affected > 0 {
		s.logger.Warn("Marked stale stories as failed", zap.Int64("count", affected))
	}
}
