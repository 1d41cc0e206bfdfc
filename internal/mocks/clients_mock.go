package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/messaging"
)

// MockTextGenerator is a mock type for the TextGenerator type
type MockTextGenerator struct {
	mock.Mock
}

var _ interfaces.TextGenerator = (*MockTextGenerator)(nil)

func (_m *MockTextGenerator) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	ret := _m.Called(ctx, systemPrompt, userInput)
	return ret.String(0), ret.Error(1)
}

func (_m *MockTextGenerator) GenerateJSONField(ctx context.Context, systemPrompt, userInput, field string) (string, error) {
	ret := _m.Called(ctx, systemPrompt, userInput, field)
	return ret.String(0), ret.Error(1)
}

// MockImageGenerator is a mock type for the ImageGenerator type
type MockImageGenerator struct {
	mock.Mock
}

var _ interfaces.ImageGenerator = (*MockImageGenerator)(nil)

func (_m *MockImageGenerator) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	ret := _m.Called(ctx, prompt, width, height)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// MockBlobStore is a mock type for the BlobStore type
type MockBlobStore struct {
	mock.Mock
}

var _ interfaces.BlobStore = (*MockBlobStore)(nil)

func (_m *MockBlobStore) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	ret := _m.Called(ctx, data, contentType)
	return ret.String(0), ret.Error(1)
}

func (_m *MockBlobStore) GetURL(ctx context.Context, ref string) (string, error) {
	ret := _m.Called(ctx, ref)
	return ret.String(0), ret.Error(1)
}

// MockTaskPublisher is a mock type for the TaskPublisher type
type MockTaskPublisher struct {
	mock.Mock
}

var _ messaging.TaskPublisher = (*MockTaskPublisher)(nil)

func (_m *MockTaskPublisher) PublishTask(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	return _m.Called(ctx, payload).Error(0)
}
