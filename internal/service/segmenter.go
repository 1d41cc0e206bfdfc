package service

import (
	"regexp"
	"strings"
)

// Сегменты разделяются пустой строкой (двумя и более переводами строки).
var segmentSeparator = regexp.MustCompile(`\n{2,}`)

// SplitScript разбивает сценарий на сегменты по пустым строкам.
// Пробельные обрывки отбрасываются, порядок сохраняется.
// Для пустого сценария возвращается пустой срез.
func SplitScript(script string) []string {
	parts := segmentSeparator.Split(script, -1)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		segments = append(segments, trimmed)
	}
	return segments
}
