package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
)

// ErrImageGenerationFailed - ошибка при генерации изображения синтез-сервером.
var ErrImageGenerationFailed = errors.New("image generation failed")

// Config содержит настройки клиента сервера синтеза изображений.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client - HTTP-клиент сервера синтеза изображений.
type Client struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

var _ interfaces.ImageGenerator = (*Client)(nil)

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("image generator base URL is not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	return &Client{
		logger:     logger.Named("imagegen_client"),
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// apiRequest - структура запроса к API синтеза.
type apiRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Generate вызывает API синтеза и возвращает байты изображения.
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	log := c.logger.With(zap.String("api_url", c.baseURL), zap.Int("width", width), zap.Int("height", height))

	reqBodyBytes, err := json.Marshal(apiRequest{Prompt: prompt, Width: width, Height: height})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	endpointURL := c.baseURL + "/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	log.Debug("Sending request to image synthesis API")
	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("Failed to execute image synthesis request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Error("Image synthesis API returned non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", bodyBytes),
		)
		return nil, fmt.Errorf("%w: API returned status %d", ErrImageGenerationFailed, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}
	if len(bodyBytes) == 0 {
		log.Error("Image synthesis API returned empty image data")
		return nil, fmt.Errorf("%w: API returned empty data", ErrImageGenerationFailed)
	}

	log.Info("Image data received", zap.Int("size_bytes", len(bodyBytes)), zap.Duration("duration", time.Since(startTime)))
	return bodyBytes, nil
}
