package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyboard-server/internal/messaging"
	"storyboard-server/internal/mocks"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

type handlerFixture struct {
	handler   *Handler
	users     *mocks.MockUserRepository
	stories   *mocks.MockStoryRepository
	segments  *mocks.MockSegmentRepository
	textGen   *mocks.MockTextGenerator
	imageGen  *mocks.MockImageGenerator
	blobStore *mocks.MockBlobStore
	publisher *mocks.MockTaskPublisher
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		users:     new(mocks.MockUserRepository),
		stories:   new(mocks.MockStoryRepository),
		segments:  new(mocks.MockSegmentRepository),
		textGen:   new(mocks.MockTextGenerator),
		imageGen:  new(mocks.MockImageGenerator),
		blobStore: new(mocks.MockBlobStore),
		publisher: new(mocks.MockTaskPublisher),
	}
	tracker := service.NewCompletionTracker(f.stories, f.segments, zap.NewNop(), 1)
	f.handler = NewHandler(zap.NewNop(), f.users, f.stories, f.segments, f.textGen, f.imageGen, f.blobStore, f.publisher, tracker)
	return f
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 36)), nil))
	return buf.Bytes()
}

func TestHandleDeliveryRejectsGarbage(t *testing.T) {
	f := newHandlerFixture(t)

	assert.False(t, f.handler.HandleDelivery(context.Background(), amqp.Delivery{Body: []byte("not json")}))

	body, _ := json.Marshal(messaging.GenerationTaskPayload{TaskID: "t", Type: "unknown_type"})
	assert.False(t, f.handler.HandleDelivery(context.Background(), amqp.Delivery{Body: body}))
}

func TestHandleGuidedStory(t *testing.T) {
	userID := uuid.New()
	storyID := uuid.New()
	payload := messaging.GenerationTaskPayload{
		TaskID:      "t1",
		Type:        messaging.TaskTypeGuidedStory,
		UserID:      userID,
		StoryID:     storyID,
		Description: "a knight and a dragon",
	}

	t.Run("saves generated script", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.textGen.On("GenerateText", mock.Anything, service.GuidedStorySystemPrompt, "a knight and a dragon").
			Return("Once upon a time.", nil).Once()
		f.stories.On("UpdateScript", mock.Anything, storyID, "Once upon a time.", models.StatusCompleted).Return(nil).Once()

		body, _ := json.Marshal(payload)
		assert.True(t, f.handler.HandleDelivery(context.Background(), amqp.Delivery{Body: body}))
		f.stories.AssertExpectations(t)
	})

	t.Run("records generation failure on the story", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.textGen.On("GenerateText", mock.Anything, service.GuidedStorySystemPrompt, mock.Anything).
			Return("", errors.New("model unavailable")).Once()
		f.stories.On("UpdateStatus", mock.Anything, storyID, models.StatusError, mock.MatchedBy(func(d *string) bool {
			return d != nil && *d == "script generation failed"
		})).Return(nil).Once()

		body, _ := json.Marshal(payload)
		assert.True(t, f.handler.HandleDelivery(context.Background(), amqp.Delivery{Body: body}))
		f.stories.AssertExpectations(t)
	})
}

func TestHandleDispatch(t *testing.T) {
	userID := uuid.New()
	storyID := uuid.New()
	payload := messaging.GenerationTaskPayload{
		TaskID:  "t2",
		Type:    messaging.TaskTypeDispatch,
		UserID:  userID,
		StoryID: storyID,
	}
	pipelineCost := models.CreditCostChatCompletion + models.CreditCostImageGeneration

	t.Run("fans out one prompt task per segment", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Script: "Scene one.\n\nScene two."}, nil).Once()
		f.textGen.On("GenerateText", mock.Anything, service.ContextSystemPrompt, mock.Anything).
			Return("A medieval tale, somber watercolor style.", nil).Once()
		f.stories.On("UpdateContext", mock.Anything, storyID, "A medieval tale, somber watercolor style.").Return(nil).Once()
		f.stories.On("BeginGenerationRound", mock.Anything, storyID, 2).Return(nil).Once()
		f.segments.On("CreateSegment", mock.Anything, mock.AnythingOfType("*models.Segment")).Return(nil).Twice()
		f.users.On("DebitCredits", mock.Anything, userID, pipelineCost).Return(nil).Twice()
		f.publisher.On("PublishTask", mock.Anything, mock.MatchedBy(func(p messaging.GenerationTaskPayload) bool {
			return p.Type == messaging.TaskTypeSegmentPrompt && p.FanOut && p.Context != ""
		})).Return(nil).Twice()

		err := f.handler.handleDispatch(context.Background(), payload)

		require.NoError(t, err)
		f.publisher.AssertExpectations(t)
		f.segments.AssertExpectations(t)
	})

	t.Run("completes immediately when script yields no segments", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Script: "   \n\n  "}, nil).Once()
		f.textGen.On("GenerateText", mock.Anything, service.ContextSystemPrompt, mock.Anything).
			Return("empty", nil).Once()
		f.stories.On("UpdateContext", mock.Anything, storyID, "empty").Return(nil).Once()
		f.stories.On("UpdateStatus", mock.Anything, storyID, models.StatusCompleted, (*string)(nil)).Return(nil).Once()

		err := f.handler.handleDispatch(context.Background(), payload)

		require.NoError(t, err)
		f.stories.AssertNotCalled(t, "BeginGenerationRound", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("redelivered dispatch with all segments present is a no-op", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Script: "Scene."}, nil).Once()
		f.textGen.On("GenerateText", mock.Anything, service.ContextSystemPrompt, mock.Anything).
			Return("ctx", nil).Once()
		f.stories.On("UpdateContext", mock.Anything, storyID, "ctx").Return(nil).Once()
		f.stories.On("BeginGenerationRound", mock.Anything, storyID, 1).
			Return(models.ErrGenerationInProgress).Once()
		f.segments.On("ListSegmentsByStory", mock.Anything, storyID).
			Return([]models.Segment{{ID: uuid.New(), StoryID: storyID, Order: 0, Text: "Scene."}}, nil).Once()

		err := f.handler.handleDispatch(context.Background(), payload)

		require.NoError(t, err)
		f.segments.AssertNotCalled(t, "CreateSegment", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "PublishTask", mock.Anything, mock.Anything)
		f.stories.AssertNotCalled(t, "DecrementPendingSegments", mock.Anything, mock.Anything)
	})

	t.Run("redelivered dispatch enqueues segments that never made it", func(t *testing.T) {
		// Воркер упал после BeginGenerationRound(2), успев поставить только
		// первый сегмент. Повторная доставка обязана доставить второй, иначе
		// счетчик раунда навсегда застрянет на единице.
		f := newHandlerFixture(t)
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Script: "Scene one.\n\nScene two."}, nil).Once()
		f.textGen.On("GenerateText", mock.Anything, service.ContextSystemPrompt, mock.Anything).
			Return("ctx", nil).Once()
		f.stories.On("UpdateContext", mock.Anything, storyID, "ctx").Return(nil).Once()
		f.stories.On("BeginGenerationRound", mock.Anything, storyID, 2).
			Return(models.ErrGenerationInProgress).Once()
		f.segments.On("ListSegmentsByStory", mock.Anything, storyID).
			Return([]models.Segment{{ID: uuid.New(), StoryID: storyID, Order: 0, Text: "Scene one.", IsGenerating: true}}, nil).Once()
		f.segments.On("CreateSegment", mock.Anything, mock.MatchedBy(func(s *models.Segment) bool {
			return s.Order == 1 && s.Text == "Scene two." && s.IsGenerating
		})).Return(nil).Once()
		f.users.On("DebitCredits", mock.Anything, userID, pipelineCost).Return(nil).Once()
		f.publisher.On("PublishTask", mock.Anything, mock.MatchedBy(func(p messaging.GenerationTaskPayload) bool {
			return p.Type == messaging.TaskTypeSegmentPrompt && p.FanOut
		})).Return(nil).Once()

		err := f.handler.handleDispatch(context.Background(), payload)

		require.NoError(t, err)
		f.segments.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
		f.stories.AssertNotCalled(t, "DecrementPendingSegments", mock.Anything, mock.Anything)
	})

	t.Run("insufficient credits fail the segment and notify the tracker", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Script: "Scene."}, nil).Once()
		f.textGen.On("GenerateText", mock.Anything, service.ContextSystemPrompt, mock.Anything).
			Return("ctx", nil).Once()
		f.stories.On("UpdateContext", mock.Anything, storyID, "ctx").Return(nil).Once()
		f.stories.On("BeginGenerationRound", mock.Anything, storyID, 1).Return(nil).Once()
		f.segments.On("CreateSegment", mock.Anything, mock.AnythingOfType("*models.Segment")).Return(nil).Once()
		f.users.On("DebitCredits", mock.Anything, userID, pipelineCost).
			Return(models.ErrInsufficientCredits).Once()
		f.segments.On("UpdateSegment", mock.Anything, mock.Anything, mock.MatchedBy(func(u models.SegmentUpdate) bool {
			return u.Error != nil && *u.Error == "insufficient credits"
		})).Return(nil).Once()
		f.stories.On("DecrementPendingSegments", mock.Anything, storyID).Return(0, true, nil).Once()
		f.segments.On("CountFailed", mock.Anything, storyID).Return(1, nil).Once()
		f.stories.On("FinalizeGenerationRound", mock.Anything, storyID, models.StatusError, mock.MatchedBy(func(d *string) bool {
			return d != nil && *d == "1 segment(s) failed"
		})).Return(nil).Once()

		err := f.handler.handleDispatch(context.Background(), payload)

		require.NoError(t, err)
		f.stories.AssertExpectations(t)
		f.publisher.AssertNotCalled(t, "PublishTask", mock.Anything, mock.Anything)
	})
}

func TestHandleSegmentPrompt(t *testing.T) {
	userID := uuid.New()
	storyID := uuid.New()
	segmentID := uuid.New()
	payload := messaging.GenerationTaskPayload{
		TaskID:    "t3",
		Type:      messaging.TaskTypeSegmentPrompt,
		UserID:    userID,
		StoryID:   storyID,
		SegmentID: segmentID,
		Context:   "noir style",
		FanOut:    true,
	}

	t.Run("saves prompt and queues image task", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(&models.Segment{ID: segmentID, StoryID: storyID, Text: "The detective enters.", IsGenerating: true}, nil).Once()
		f.textGen.On("GenerateJSONField", mock.Anything, service.SegmentPromptSystemPrompt("noir style"), "The detective enters.", "prompt").
			Return("a detective entering a dim office, noir style", nil).Once()
		f.segments.On("UpdateSegment", mock.Anything, segmentID, mock.MatchedBy(func(u models.SegmentUpdate) bool {
			return u.Prompt != nil && *u.Prompt != ""
		})).Return(nil).Once()
		f.publisher.On("PublishTask", mock.Anything, mock.MatchedBy(func(p messaging.GenerationTaskPayload) bool {
			return p.Type == messaging.TaskTypeSegmentImage && p.SegmentID == segmentID && p.FanOut
		})).Return(nil).Once()

		err := f.handler.handleSegmentPrompt(context.Background(), payload)

		require.NoError(t, err)
		f.publisher.AssertExpectations(t)
	})

	t.Run("deleted segment is skipped without touching the counter", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(nil, models.ErrSegmentNotFound).Once()

		err := f.handler.handleSegmentPrompt(context.Background(), payload)

		require.NoError(t, err)
		f.stories.AssertNotCalled(t, "DecrementPendingSegments", mock.Anything, mock.Anything)
	})

	t.Run("model failure fails the segment and notifies the tracker", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(&models.Segment{ID: segmentID, StoryID: storyID, Text: "text", IsGenerating: true}, nil).Once()
		f.textGen.On("GenerateJSONField", mock.Anything, mock.Anything, mock.Anything, "prompt").
			Return("", errors.New("bad json")).Once()
		f.segments.On("UpdateSegment", mock.Anything, segmentID, mock.MatchedBy(func(u models.SegmentUpdate) bool {
			return u.Error != nil && *u.Error == "prompt generation failed" && u.IsGenerating != nil && !*u.IsGenerating
		})).Return(nil).Once()
		f.stories.On("DecrementPendingSegments", mock.Anything, storyID).Return(3, true, nil).Once()

		err := f.handler.handleSegmentPrompt(context.Background(), payload)

		require.NoError(t, err)
		f.stories.AssertExpectations(t)
	})
}

func TestHandleSegmentImage(t *testing.T) {
	userID := uuid.New()
	storyID := uuid.New()
	segmentID := uuid.New()
	prompt := "a lighthouse at dusk"
	payload := messaging.GenerationTaskPayload{
		TaskID:    "t4",
		Type:      messaging.TaskTypeSegmentImage,
		UserID:    userID,
		StoryID:   storyID,
		SegmentID: segmentID,
		FanOut:    true,
	}

	t.Run("stores image with preview and notifies the tracker", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(&models.Segment{ID: segmentID, StoryID: storyID, IsGenerating: true, Prompt: &prompt}, nil).Once()
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, IsVertical: true, Status: models.StatusGeneratingSegments}, nil).Once()
		f.imageGen.On("Generate", mock.Anything, prompt, models.FullImageShortSide, models.FullImageLongSide).
			Return(testJPEG(t), nil).Once()
		f.blobStore.On("Store", mock.Anything, mock.Anything, "image/jpeg").Return("ref-full", nil).Once()
		f.blobStore.On("Store", mock.Anything, mock.Anything, "image/jpeg").Return("ref-preview", nil).Once()
		f.segments.On("UpdateSegment", mock.Anything, segmentID, mock.MatchedBy(func(u models.SegmentUpdate) bool {
			return u.ImageRef != nil && *u.ImageRef == "ref-full" &&
				u.PreviewImageRef != nil && *u.PreviewImageRef == "ref-preview" &&
				u.IsGenerating != nil && !*u.IsGenerating
		})).Return(nil).Once()
		f.stories.On("DecrementPendingSegments", mock.Anything, storyID).Return(1, true, nil).Once()

		err := f.handler.handleSegmentImage(context.Background(), payload)

		require.NoError(t, err)
		f.blobStore.AssertExpectations(t)
		f.stories.AssertExpectations(t)
	})

	t.Run("synthesis failure fails the segment and notifies the tracker", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(&models.Segment{ID: segmentID, StoryID: storyID, IsGenerating: true, Prompt: &prompt}, nil).Once()
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Status: models.StatusGeneratingSegments}, nil).Once()
		f.imageGen.On("Generate", mock.Anything, prompt, models.FullImageLongSide, models.FullImageShortSide).
			Return(nil, errors.New("synthesis server down")).Once()
		f.segments.On("UpdateSegment", mock.Anything, segmentID, mock.MatchedBy(func(u models.SegmentUpdate) bool {
			return u.Error != nil && *u.Error == "image generation failed"
		})).Return(nil).Once()
		f.stories.On("DecrementPendingSegments", mock.Anything, storyID).Return(2, true, nil).Once()

		err := f.handler.handleSegmentImage(context.Background(), payload)

		require.NoError(t, err)
		f.stories.AssertExpectations(t)
	})

	t.Run("manual regeneration does not touch the counter", func(t *testing.T) {
		f := newHandlerFixture(t)
		manual := payload
		manual.FanOut = false
		f.segments.On("GetSegmentByID", mock.Anything, segmentID).
			Return(&models.Segment{ID: segmentID, StoryID: storyID, IsGenerating: true, Prompt: &prompt}, nil).Once()
		f.stories.On("GetStoryByID", mock.Anything, storyID).
			Return(&models.Story{ID: storyID, UserID: userID, Status: models.StatusCompleted}, nil).Once()
		f.imageGen.On("Generate", mock.Anything, prompt, models.FullImageLongSide, models.FullImageShortSide).
			Return(testJPEG(t), nil).Once()
		f.blobStore.On("Store", mock.Anything, mock.Anything, "image/jpeg").Return("ref", nil).Twice()
		f.segments.On("UpdateSegment", mock.Anything, segmentID, mock.Anything).Return(nil).Once()

		err := f.handler.handleSegmentImage(context.Background(), manual)

		require.NoError(t, err)
		f.stories.AssertNotCalled(t, "DecrementPendingSegments", mock.Anything, mock.Anything)
	})
}
