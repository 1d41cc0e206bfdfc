package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONField парсит ответ модели как JSON-объект и возвращает строковое
// поле field. Модели иногда оборачивают JSON в markdown-блок, это допускается.
func extractJSONField(raw, field string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return "", fmt.Errorf("response is not a JSON object: %w", err)
	}

	rawValue, ok := payload[field]
	if !ok {
		return "", fmt.Errorf("response object has no field '%s'", field)
	}

	var value string
	if err := json.Unmarshal(rawValue, &value); err != nil {
		return "", fmt.Errorf("field '%s' is not a string: %w", field, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("field '%s' is empty", field)
	}
	return value, nil
}
