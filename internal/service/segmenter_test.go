package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitScript(t *testing.T) {
	testCases := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two paragraphs",
			script: "First scene.\n\nSecond scene.",
			want:   []string{"First scene.", "Second scene."},
		},
		{
			name:   "multiple blank lines collapse into one separator",
			script: "A\n\n\n\nB",
			want:   []string{"A", "B"},
		},
		{
			name:   "single newline does not split",
			script: "Line one\nline two",
			want:   []string{"Line one\nline two"},
		},
		{
			name:   "whitespace-only chunks are dropped",
			script: "A\n\n   \n\nB\n\n",
			want:   []string{"A", "B"},
		},
		{
			name:   "empty script",
			script: "",
			want:   []string{},
		},
		{
			name:   "whitespace-only script",
			script: "  \n\n \t ",
			want:   []string{},
		},
		{
			name:   "leading and trailing whitespace trimmed per segment",
			script: "  A  \n\n\t B \t",
			want:   []string{"A", "B"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitScript(tc.script))
		})
	}
}
