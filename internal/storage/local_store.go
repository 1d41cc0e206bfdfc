package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// LocalConfig содержит настройки файлового хранилища изображений.
type LocalConfig struct {
	Path    string // Директория для сохранения файлов
	BaseURL string // Базовый URL для доступа к файлам
}

// LocalStore хранит изображения на диске и отдает их по публичному URL.
// Используется в разработке и небольших инсталляциях вместо S3.
type LocalStore struct {
	logger  *zap.Logger
	path    string
	baseURL string
}

var _ interfaces.BlobStore = (*LocalStore)(nil)

// NewLocalStore создает новый экземпляр LocalStore.
func NewLocalStore(cfg LocalConfig, logger *zap.Logger) (*LocalStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("local storage path is not configured")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("local storage public base URL is not configured")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", cfg.Path, err)
	}
	return &LocalStore{
		logger:  logger.Named("local_store"),
		path:    cfg.Path,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Store сохраняет изображение в файл и возвращает имя файла как ссылку.
func (s *LocalStore) Store(_ context.Context, data []byte, contentType string) (string, error) {
	fileName := uuid.New().String() + extensionFor(contentType)
	filePath := filepath.Join(s.path, fileName)

	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		s.logger.Error("Failed to save image to file", zap.String("path", filePath), zap.Error(err))
		return "", fmt.Errorf("failed to save image file: %w", err)
	}

	s.logger.Debug("Image saved to file", zap.String("path", filePath), zap.Int("size_bytes", len(data)))
	return fileName, nil
}

// GetURL возвращает публичный URL сохраненного файла.
func (s *LocalStore) GetURL(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", models.ErrNotFound
	}
	return s.baseURL + "/" + ref, nil
}
