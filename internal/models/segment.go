package models

import (
	"time"

	"github.com/google/uuid"
)

// Segment — один блок сценария с независимо генерируемой иллюстрацией.
// Order — плотная нумерация 0..N-1 в рамках истории, поддерживается переиндексацией
// при удалении/вставке.
type Segment struct {
	ID              uuid.UUID `json:"id" db:"id"`
	StoryID         uuid.UUID `json:"storyId" db:"story_id"`
	Order           int       `json:"order" db:"order"`
	Text            string    `json:"text" db:"text"`
	IsGenerating    bool      `json:"isGenerating" db:"is_generating"`
	ImageRef        *string   `json:"imageRef,omitempty" db:"image_ref"`
	PreviewImageRef *string   `json:"previewImageRef,omitempty" db:"preview_image_ref"`
	Prompt          *string   `json:"prompt,omitempty" db:"prompt"`
	Error           *string   `json:"error,omitempty" db:"error"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// SegmentUpdate — частичное обновление сегмента. nil-поле не трогает колонку.
// Повторное применение одного и того же обновления безопасно (идемпотентные записи).
type SegmentUpdate struct {
	ImageRef        *string
	PreviewImageRef *string
	Prompt          *string
	IsGenerating    *bool
	Error           *string
}
