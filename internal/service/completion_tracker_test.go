package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
)

func newTracker(t *testing.T) (*CompletionTracker, *mocks.MockStoryRepository, *mocks.MockSegmentRepository) {
	t.Helper()
	storyRepo := new(mocks.MockStoryRepository)
	segmentRepo := new(mocks.MockSegmentRepository)
	tracker := NewCompletionTracker(storyRepo, segmentRepo, zap.NewNop(), 3)
	return tracker, storyRepo, segmentRepo
}

func TestNotifyOutcomeDecrementsWithoutFinalizing(t *testing.T) {
	tracker, storyRepo, segmentRepo := newTracker(t)
	storyID := uuid.New()

	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(2, true, nil).Once()

	_, finalized, err := tracker.NotifyOutcome(context.Background(), storyID)

	require.NoError(t, err)
	assert.False(t, finalized)
	storyRepo.AssertExpectations(t)
	segmentRepo.AssertNotCalled(t, "CountFailed", mock.Anything, mock.Anything)
	storyRepo.AssertNotCalled(t, "FinalizeGenerationRound", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyOutcomeFinalizesCompletedOnZero(t *testing.T) {
	tracker, storyRepo, segmentRepo := newTracker(t)
	storyID := uuid.New()

	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, true, nil).Once()
	segmentRepo.On("CountFailed", mock.Anything, storyID).Return(0, nil).Once()
	storyRepo.On("FinalizeGenerationRound", mock.Anything, storyID, models.StatusCompleted, (*string)(nil)).Return(nil).Once()

	status, finalized, err := tracker.NotifyOutcome(context.Background(), storyID)

	require.NoError(t, err)
	assert.True(t, finalized)
	assert.Equal(t, models.StatusCompleted, status)
	storyRepo.AssertExpectations(t)
	segmentRepo.AssertExpectations(t)
}

func TestNotifyOutcomeFinalizesErrorWithSummary(t *testing.T) {
	tracker, storyRepo, segmentRepo := newTracker(t)
	storyID := uuid.New()

	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, true, nil).Once()
	segmentRepo.On("CountFailed", mock.Anything, storyID).Return(2, nil).Once()
	storyRepo.On("FinalizeGenerationRound", mock.Anything, storyID, models.StatusError, mock.MatchedBy(func(details *string) bool {
		return details != nil && *details == "2 segment(s) failed"
	})).Return(nil).Once()

	status, finalized, err := tracker.NotifyOutcome(context.Background(), storyID)

	require.NoError(t, err)
	assert.True(t, finalized)
	assert.Equal(t, models.StatusError, status)
	storyRepo.AssertExpectations(t)
	segmentRepo.AssertExpectations(t)
}

func TestNotifyOutcomeIgnoresStraySignal(t *testing.T) {
	tracker, storyRepo, segmentRepo := newTracker(t)
	storyID := uuid.New()

	// Декремент не прошел: активного раунда нет или счетчик уже на нуле.
	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, false, nil).Once()

	_, finalized, err := tracker.NotifyOutcome(context.Background(), storyID)

	require.NoError(t, err)
	assert.False(t, finalized)
	storyRepo.AssertExpectations(t)
	segmentRepo.AssertNotCalled(t, "CountFailed", mock.Anything, mock.Anything)
	storyRepo.AssertNotCalled(t, "FinalizeGenerationRound", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifyOutcomeRetriesTransientFailures(t *testing.T) {
	tracker, storyRepo, segmentRepo := newTracker(t)
	storyID := uuid.New()

	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, false, errors.New("connection reset")).Twice()
	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, true, nil).Once()
	segmentRepo.On("CountFailed", mock.Anything, storyID).Return(0, nil).Once()
	storyRepo.On("FinalizeGenerationRound", mock.Anything, storyID, models.StatusCompleted, (*string)(nil)).Return(nil).Once()

	_, finalized, err := tracker.NotifyOutcome(context.Background(), storyID)

	require.NoError(t, err)
	assert.True(t, finalized)
	storyRepo.AssertExpectations(t)
}

func TestNotifyOutcomeReturnsErrorWhenRetriesExhausted(t *testing.T) {
	tracker, storyRepo, _ := newTracker(t)
	storyID := uuid.New()

	dbErr := errors.New("database is down")
	storyRepo.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, false, dbErr).Times(3)

	_, _, err := tracker.NotifyOutcome(context.Background(), storyID)

	assert.ErrorContains(t, err, "failed to decrement pending segments")
	storyRepo.AssertExpectations(t)
}
