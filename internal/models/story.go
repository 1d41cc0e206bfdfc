package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryStatus описывает этап жизненного цикла истории.
type StoryStatus string

const (
	StatusDraft              StoryStatus = "draft"
	StatusProcessing         StoryStatus = "processing"
	StatusCompleted          StoryStatus = "completed"
	StatusGeneratingSegments StoryStatus = "generating_segments"
	StatusError              StoryStatus = "error"
)

// IsTerminal сообщает, является ли статус конечным для текущего раунда генерации.
func (s StoryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Story — корневой агрегат: сценарий и состояние его раскадровки.
// PendingSegments задан только пока Status == StatusGeneratingSegments.
type Story struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"userId" db:"user_id"`
	Title           string      `json:"title" db:"title"`
	Script          string      `json:"script" db:"script"`
	Status          StoryStatus `json:"status" db:"status"`
	IsVertical      bool        `json:"isVertical" db:"is_vertical"`
	Context         *string     `json:"context,omitempty" db:"context"`
	ErrorDetails    *string     `json:"errorDetails,omitempty" db:"error_details"`
	PendingSegments *int        `json:"pendingSegments,omitempty" db:"pending_segments"`
	CreatedAt       time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" db:"updated_at"`
}

// ImageDimensions возвращает целевые размеры полного изображения для ориентации истории.
func (s *Story) ImageDimensions() (width, height int) {
	if s.IsVertical {
		return FullImageShortSide, FullImageLongSide
	}
	return FullImageLongSide, FullImageShortSide
}

// PreviewBounds возвращает ограничивающий прямоугольник превью для ориентации истории.
func (s *Story) PreviewBounds() (maxWidth, maxHeight int) {
	if s.IsVertical {
		return PreviewShortSide, PreviewLongSide
	}
	return PreviewLongSide, PreviewShortSide
}

// Размеры изображений. Полный кадр соответствует 16:9 либо 9:16,
// превью вписывается в фиксированный прямоугольник.
const (
	FullImageLongSide  = 1920
	FullImageShortSide = 1080
	PreviewLongSide    = 850
	PreviewShortSide   = 468
)
