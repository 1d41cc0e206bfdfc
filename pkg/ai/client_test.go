package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONField(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		value, err := extractJSONField(`{"script": "Hello world"}`, "script")
		require.NoError(t, err)
		assert.Equal(t, "Hello world", value)
	})

	t.Run("markdown fenced object", func(t *testing.T) {
		raw := "```json\n{\"prompt\": \"a lonely lighthouse at dusk\"}\n```"
		value, err := extractJSONField(raw, "prompt")
		require.NoError(t, err)
		assert.Equal(t, "a lonely lighthouse at dusk", value)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := extractJSONField(`{"other": "x"}`, "script")
		assert.Error(t, err)
	})

	t.Run("field is not a string", func(t *testing.T) {
		_, err := extractJSONField(`{"script": 42}`, "script")
		assert.Error(t, err)
	})

	t.Run("empty value", func(t *testing.T) {
		_, err := extractJSONField(`{"script": "   "}`, "script")
		assert.Error(t, err)
	})

	t.Run("not json at all", func(t *testing.T) {
		_, err := extractJSONField(`Sure! Here is your script: ...`, "script")
		assert.Error(t, err)
	})
}

func TestNewValidation(t *testing.T) {
	t.Run("model required", func(t *testing.T) {
		_, err := New(Config{Backend: "openai", APIKey: "k"})
		assert.Error(t, err)
	})

	t.Run("openai requires api key", func(t *testing.T) {
		_, err := New(Config{Backend: "openai", Model: "gpt-4o-mini"})
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(Config{Backend: "bard", Model: "m", APIKey: "k"})
		assert.Error(t, err)
	})

	t.Run("ollama host with v1 suffix", func(t *testing.T) {
		c, err := New(Config{Backend: "ollama", Model: "llama3", OllamaHost: "http://localhost:11434/v1"})
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}
