package messaging

import "github.com/google/uuid"

// TaskType определяет этап конвейера, который должен выполнить воркер.
type TaskType string

const (
	// TaskTypeGuidedStory — генерация сценария по описанию пользователя.
	TaskTypeGuidedStory TaskType = "guided_story"
	// TaskTypeRefineScript — переработка готового сценария по инструкции.
	TaskTypeRefineScript TaskType = "refine_script"
	// TaskTypeDispatch — fan-out: контекст, нарезка, счетчик, постановка задач сегментов.
	TaskTypeDispatch TaskType = "dispatch_segments"
	// TaskTypeSegmentPrompt — синтез промпта изображения для одного сегмента.
	TaskTypeSegmentPrompt TaskType = "segment_prompt"
	// TaskTypeSegmentImage — синтез изображения, пост-обработка, сохранение.
	TaskTypeSegmentImage TaskType = "segment_image"
)

// IsValidTaskType проверяет, является ли строка допустимым TaskType.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeGuidedStory, TaskTypeRefineScript, TaskTypeDispatch, TaskTypeSegmentPrompt, TaskTypeSegmentImage:
		return true
	default:
		return false
	}
}

// GenerationTaskPayload — структура сообщения задачи генерации.
// Набор заполненных полей зависит от Type.
type GenerationTaskPayload struct {
	TaskID  string    `json:"taskId"`
	Type    TaskType  `json:"type"`
	UserID  uuid.UUID `json:"userId"`
	StoryID uuid.UUID `json:"storyId"`

	SegmentID uuid.UUID `json:"segmentId,omitempty"` // segment_prompt, segment_image

	Description string `json:"description,omitempty"` // guided_story
	Instruction string `json:"instruction,omitempty"` // refine_script
	Context     string `json:"context,omitempty"`     // segment_prompt: общий стилевой контекст раунда

	// FanOut отмечает, что задача изображения принадлежит активному раунду
	// fan-out и обязана ровно один раз уведомить Completion Tracker.
	// Ручные операции над одним сегментом идут с FanOut=false и счетчик не трогают.
	FanOut bool `json:"fanOut,omitempty"`
}
