package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"storyboard-server/internal/database"
	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// Интеграционные тесты репозиториев против настоящего PostgreSQL.
// Проверяют атомарность списания кредитов и семантику счетчика раунда,
// которую нельзя честно покрыть моками.
type RepositoriesSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	logger      *zap.Logger

	users    interfaces.UserRepository
	stories  interfaces.StoryRepository
	segments interfaces.SegmentRepository
}

func (s *RepositoriesSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err)

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("storyboard_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	require.NoError(s.T(), database.Migrate(connStr, s.logger), "Failed to run migrations")

	s.users = database.NewPgUserRepository(s.pool, s.logger)
	s.stories = database.NewPgStoryRepository(s.pool, s.logger)
	s.segments = database.NewPgSegmentRepository(s.pool, s.logger)
}

func (s *RepositoriesSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
}

func (s *RepositoriesSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE users CASCADE")
	require.NoError(s.T(), err)
}

func TestRepositoriesSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoriesSuite))
}

func (s *RepositoriesSuite) createUser(credits int) *models.User {
	user := &models.User{
		Email:        uuid.NewString() + "@example.com",
		Name:         "tester",
		PasswordHash: "hash",
		Credits:      credits,
	}
	require.NoError(s.T(), s.users.CreateUser(s.ctx, user))
	return user
}

func (s *RepositoriesSuite) createStory(userID uuid.UUID, status models.StoryStatus) *models.Story {
	story := &models.Story{
		UserID: userID,
		Title:  "test story",
		Script: "first\n\nsecond",
		Status: status,
	}
	require.NoError(s.T(), s.stories.CreateStory(s.ctx, story))
	return story
}

func (s *RepositoriesSuite) TestDebitCredits() {
	t := s.T()
	user := s.createUser(20)

	// Успешное списание стоимости одного конвейера сегмента.
	err := s.users.DebitCredits(s.ctx, user.ID, 11)
	require.NoError(t, err)

	got, err := s.users.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 9, got.Credits)

	// Недостаточно средств: баланс не меняется.
	err = s.users.DebitCredits(s.ctx, user.ID, 10)
	require.ErrorIs(t, err, models.ErrInsufficientCredits)

	got, err = s.users.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 9, got.Credits)

	// Неизвестный пользователь.
	err = s.users.DebitCredits(s.ctx, uuid.New(), 1)
	require.ErrorIs(t, err, models.ErrUserNotFound)

	// Начисление по вебхуку.
	require.NoError(t, s.users.AddCredits(s.ctx, user.ID, 1000))
	got, err = s.users.GetUserByID(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1009, got.Credits)
}

func (s *RepositoriesSuite) TestGenerationRoundLifecycle() {
	t := s.T()
	user := s.createUser(100)
	story := s.createStory(user.ID, models.StatusProcessing)

	require.NoError(t, s.stories.BeginGenerationRound(s.ctx, story.ID, 3))

	// Повторный старт раунда отклоняется, пока текущий не завершен.
	err := s.stories.BeginGenerationRound(s.ctx, story.ID, 5)
	require.ErrorIs(t, err, models.ErrGenerationInProgress)

	got, err := s.stories.GetStoryByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusGeneratingSegments, got.Status)
	require.NotNil(t, got.PendingSegments)
	require.Equal(t, 3, *got.PendingSegments)

	remaining, decremented, err := s.stories.DecrementPendingSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.True(t, decremented)
	require.Equal(t, 2, remaining)

	remaining, decremented, err = s.stories.DecrementPendingSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.True(t, decremented)
	require.Equal(t, 1, remaining)

	remaining, decremented, err = s.stories.DecrementPendingSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.True(t, decremented)
	require.Equal(t, 0, remaining)

	// Счетчик исчерпан: поздний сигнал ничего не списывает.
	_, decremented, err = s.stories.DecrementPendingSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.False(t, decremented)

	require.NoError(t, s.stories.FinalizeGenerationRound(s.ctx, story.ID, models.StatusCompleted, nil))

	got, err = s.stories.GetStoryByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.Nil(t, got.PendingSegments)
	require.Nil(t, got.ErrorDetails)

	// После финализации декремент — no-op.
	_, decremented, err = s.stories.DecrementPendingSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.False(t, decremented)
}

func (s *RepositoriesSuite) TestDecrementPendingSegmentsConcurrent() {
	t := s.T()
	user := s.createUser(100)
	story := s.createStory(user.ID, models.StatusProcessing)

	const total = 8
	require.NoError(t, s.stories.BeginGenerationRound(s.ctx, story.ID, total))

	// Сигналов вдвое больше, чем сегментов: списаться должны ровно total.
	type outcome struct {
		decremented bool
		err         error
	}

	var wg sync.WaitGroup
	results := make(chan outcome, total*2)
	for i := 0; i < total*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, decremented, err := s.stories.DecrementPendingSegments(s.ctx, story.ID)
			results <- outcome{decremented: decremented, err: err}
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for res := range results {
		require.NoError(t, res.err)
		if res.decremented {
			succeeded++
		}
	}
	require.Equal(t, total, succeeded)

	got, err := s.stories.GetStoryByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PendingSegments)
	require.Equal(t, 0, *got.PendingSegments)
}

func (s *RepositoriesSuite) TestDeleteSegmentReindexesOrder() {
	t := s.T()
	user := s.createUser(100)
	story := s.createStory(user.ID, models.StatusCompleted)

	texts := []string{"first", "second", "third"}
	ids := make([]uuid.UUID, 0, len(texts))
	for i, text := range texts {
		seg := &models.Segment{StoryID: story.ID, Order: i, Text: text}
		require.NoError(t, s.segments.CreateSegment(s.ctx, seg))
		ids = append(ids, seg.ID)
	}

	deleted, err := s.segments.DeleteSegment(s.ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, "second", deleted.Text)

	rest, err := s.segments.ListSegmentsByStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, 0, rest[0].Order)
	require.Equal(t, "first", rest[0].Text)
	require.Equal(t, 1, rest[1].Order)
	require.Equal(t, "third", rest[1].Text)

	_, err = s.segments.DeleteSegment(s.ctx, ids[1])
	require.ErrorIs(t, err, models.ErrSegmentNotFound)
}

func (s *RepositoriesSuite) TestMarkStaleAsError() {
	t := s.T()
	user := s.createUser(100)
	stuck := s.createStory(user.ID, models.StatusProcessing)
	draft := s.createStory(user.ID, models.StatusDraft)

	affected, err := s.stories.MarkStaleAsError(s.ctx,
		[]models.StoryStatus{models.StatusProcessing, models.StatusGeneratingSegments},
		time.Now().Add(time.Minute), "generation timed out")
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	got, err := s.stories.GetStoryByID(s.ctx, stuck.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusError, got.Status)
	require.NotNil(t, got.ErrorDetails)
	require.Equal(t, "generation timed out", *got.ErrorDetails)

	got, err = s.stories.GetStoryByID(s.ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, got.Status)
}
