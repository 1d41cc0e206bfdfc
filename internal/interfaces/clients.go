package interfaces

import "context"

// TextGenerator — контракт текстовой модели (LLM).
type TextGenerator interface {
	// GenerateText возвращает свободный текстовый ответ модели.
	GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error)

	// GenerateJSONField запрашивает у модели строгий JSON-объект с одним
	// строковым полем field и возвращает его значение.
	GenerateJSONField(ctx context.Context, systemPrompt, userInput, field string) (string, error)
}

// ImageGenerator — контракт сервиса синтеза изображений.
type ImageGenerator interface {
	// Generate возвращает байты изображения для промпта и целевых размеров.
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// BlobStore — долговременное хранилище бинарных объектов.
type BlobStore interface {
	// Store сохраняет данные и возвращает непрозрачную ссылку.
	Store(ctx context.Context, data []byte, contentType string) (string, error)

	// GetURL возвращает URL для чтения ранее сохраненного объекта.
	GetURL(ctx context.Context, ref string) (string, error)
}
