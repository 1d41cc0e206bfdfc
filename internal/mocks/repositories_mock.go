package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// MockUserRepository is a mock type for the UserRepository type
type MockUserRepository struct {
	mock.Mock
}

var _ interfaces.UserRepository = (*MockUserRepository)(nil)

func (_m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return _m.Called(ctx, user).Error(0)
}

func (_m *MockUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}
	return r0, ret.Error(1)
}

func (_m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ret := _m.Called(ctx, email)
	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}
	return r0, ret.Error(1)
}

func (_m *MockUserRepository) DebitCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	return _m.Called(ctx, userID, amount).Error(0)
}

func (_m *MockUserRepository) AddCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	return _m.Called(ctx, userID, amount).Error(0)
}

// MockStoryRepository is a mock type for the StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

var _ interfaces.StoryRepository = (*MockStoryRepository)(nil)

func (_m *MockStoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	return _m.Called(ctx, story).Error(0)
}

func (_m *MockStoryRepository) GetStoryByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]models.Story, error) {
	ret := _m.Called(ctx, userID)
	var r0 []models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Story)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockStoryRepository) UpdateScript(ctx context.Context, id uuid.UUID, script string, status models.StoryStatus) error {
	return _m.Called(ctx, id, script, status).Error(0)
}

func (_m *MockStoryRepository) UpdateOrientation(ctx context.Context, id uuid.UUID, isVertical bool) error {
	return _m.Called(ctx, id, isVertical).Error(0)
}

func (_m *MockStoryRepository) UpdateContext(ctx context.Context, id uuid.UUID, storyContext string) error {
	return _m.Called(ctx, id, storyContext).Error(0)
}

func (_m *MockStoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error {
	return _m.Called(ctx, id, status, errorDetails).Error(0)
}

func (_m *MockStoryRepository) BeginGenerationRound(ctx context.Context, id uuid.UUID, total int) error {
	return _m.Called(ctx, id, total).Error(0)
}

func (_m *MockStoryRepository) DecrementPendingSegments(ctx context.Context, id uuid.UUID) (int, bool, error) {
	ret := _m.Called(ctx, id)
	return ret.Int(0), ret.Bool(1), ret.Error(2)
}

func (_m *MockStoryRepository) FinalizeGenerationRound(ctx context.Context, id uuid.UUID, status models.StoryStatus, errorDetails *string) error {
	return _m.Called(ctx, id, status, errorDetails).Error(0)
}

func (_m *MockStoryRepository) MarkStaleAsError(ctx context.Context, statuses []models.StoryStatus, olderThan time.Time, details string) (int64, error) {
	ret := _m.Called(ctx, statuses, olderThan, details)
	return ret.Get(0).(int64), ret.Error(1)
}

// MockSegmentRepository is a mock type for the SegmentRepository type
type MockSegmentRepository struct {
	mock.Mock
}

var _ interfaces.SegmentRepository = (*MockSegmentRepository)(nil)

func (_m *MockSegmentRepository) CreateSegment(ctx context.Context, segment *models.Segment) error {
	return _m.Called(ctx, segment).Error(0)
}

func (_m *MockSegmentRepository) GetSegmentByID(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.Segment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Segment)
	}
	return r0, ret.Error(1)
}

func (_m *MockSegmentRepository) ListSegmentsByStory(ctx context.Context, storyID uuid.UUID) ([]models.Segment, error) {
	ret := _m.Called(ctx, storyID)
	var r0 []models.Segment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Segment)
	}
	return r0, ret.Error(1)
}

func (_m *MockSegmentRepository) UpdateSegment(ctx context.Context, id uuid.UUID, update models.SegmentUpdate) error {
	return _m.Called(ctx, id, update).Error(0)
}

func (_m *MockSegmentRepository) DeleteSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.Segment
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Segment)
	}
	return r0, ret.Error(1)
}

func (_m *MockSegmentRepository) CountFailed(ctx context.Context, storyID uuid.UUID) (int, error) {
	ret := _m.Called(ctx, storyID)
	return ret.Int(0), ret.Error(1)
}

// MockBillingEventRepository is a mock type for the BillingEventRepository type
type MockBillingEventRepository struct {
	mock.Mock
}

var _ interfaces.BillingEventRepository = (*MockBillingEventRepository)(nil)

func (_m *MockBillingEventRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ret := _m.Called(ctx, eventID)
	return ret.Bool(0), ret.Error(1)
}
