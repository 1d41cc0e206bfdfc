package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	openaigo "github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "ai_client").Logger()

// ErrAIGenerationFailed - ошибка при генерации текста AI.
var ErrAIGenerationFailed = errors.New("ai text generation failed")

// Config содержит конфигурацию для клиента текстовой модели.
type Config struct {
	Backend     string // "openai" (и совместимые API) или "ollama"
	APIKey      string
	BaseURL     string
	Model       string
	OllamaHost  string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float32
}

// Client — клиент текстовой модели. Протокол выбирается конфигурацией.
type Client struct {
	backend     backend
	model       string
	maxRetries  int
	timeout     time.Duration
	temperature float32
}

// backend абстрагирует конкретный API: один chat-запрос с опциональным
// требованием JSON-объекта в ответе.
type backend interface {
	chat(ctx context.Context, systemPrompt, userInput string, temperature float32, jsonMode bool) (string, error)
}

// New создает новый экземпляр клиента текстовой модели.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("ai model name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	var b backend
	switch strings.ToLower(cfg.Backend) {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("ai api key is required for openai backend")
		}
		clientCfg := openaigo.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		b = &openAIBackend{client: openaigo.NewClientWithConfig(clientCfg), model: cfg.Model}
	case "ollama":
		// api.NewClient требует URL без суффикса /v1
		host := strings.TrimSuffix(strings.TrimSuffix(cfg.OllamaHost, "/"), "/v1")
		parsedURL, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host '%s': %w", host, err)
		}
		b = &ollamaBackend{
			client: api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
			model:  cfg.Model,
		}
	default:
		return nil, fmt.Errorf("unknown ai backend: %s", cfg.Backend)
	}

	log.Info().Str("backend", cfg.Backend).Str("model", cfg.Model).Msg("AI client created")

	return &Client{
		backend:     b,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
	}, nil
}

// GenerateText возвращает свободный текстовый ответ модели.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	return c.generate(ctx, systemPrompt, userInput, false)
}

// GenerateJSONField запрашивает у модели JSON-объект с одним строковым полем
// field и возвращает его значение. Ответы вне формата считаются ошибкой.
func (c *Client) GenerateJSONField(ctx context.Context, systemPrompt, userInput, field string) (string, error) {
	raw, err := c.generate(ctx, systemPrompt, userInput, true)
	if err != nil {
		return "", err
	}
	value, err := extractJSONField(raw, field)
	if err != nil {
		log.Warn().Err(err).Str("field", field).Msg("Model response is not the expected JSON object")
		return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	return value, nil
}

// generate выполняет запрос с ретраями и экспоненциальной задержкой.
func (c *Client) generate(ctx context.Context, systemPrompt, userInput string, jsonMode bool) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return "", fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}

	c.observePromptTokens(systemPrompt, userInput)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		startTime := time.Now()
		text, err := c.backend.chat(ctx, systemPrompt, userInput, c.temperature, jsonMode)
		duration := time.Since(startTime)

		if err == nil && strings.TrimSpace(text) != "" {
			log.Debug().Dur("duration", duration).Int("attempt", attempt).Int("response_len", len(text)).Msg("AI request succeeded")
			return text, nil
		}

		if err == nil {
			err = fmt.Errorf("%w: model returned empty response", ErrAIGenerationFailed)
		}
		lastErr = err
		log.Warn().Err(err).Dur("duration", duration).Int("attempt", attempt).Int("max_attempts", c.maxRetries).Msg("AI request failed")

		if attempt < c.maxRetries {
			delay := time.Duration(attempt) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	if errors.Is(lastErr, ErrAIGenerationFailed) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: %v", ErrAIGenerationFailed, lastErr)
}

// observePromptTokens оценивает размер промпта в токенах для логов.
// Непригодная для модели кодировка — не ошибка, оценка просто пропускается.
func (c *Client) observePromptTokens(systemPrompt, userInput string) {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return
	}
	count := len(tke.Encode(systemPrompt, nil, nil)) + len(tke.Encode(userInput, nil, nil))
	log.Debug().Int("prompt_tokens", count).Str("model", c.model).Msg("Estimated prompt tokens")
}

// --- OpenAI-compatible backend ---

type openAIBackend struct {
	client *openaigo.Client
	model  string
}

func (b *openAIBackend) chat(ctx context.Context, systemPrompt, userInput string, temperature float32, jsonMode bool) (string, error) {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	req := openaigo.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: temperature,
	}
	if jsonMode {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// --- Ollama backend ---

type ollamaBackend struct {
	client *api.Client
	model  string
}

func (b *ollamaBackend) chat(ctx context.Context, systemPrompt, userInput string, temperature float32, jsonMode bool) (string, error) {
	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}
	if jsonMode {
		req.Format = []byte(`"json"`)
	}

	var content strings.Builder
	err := b.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content.String(), nil
}
