package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
)

// S3Config содержит настройки хранилища изображений в S3.
type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string // Опционально, для S3-совместимых хранилищ
	URLTTL   time.Duration
}

// S3Store хранит изображения в S3 и выдает presigned URL для чтения.
type S3Store struct {
	logger *zap.Logger
	s3Svc  *s3.S3
	cfg    S3Config
}

var _ interfaces.BlobStore = (*S3Store)(nil)

// NewS3Store создает новый экземпляр S3Store.
func NewS3Store(cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 15 * time.Minute
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &S3Store{
		logger: logger.Named("s3_store"),
		s3Svc:  s3.New(sess),
		cfg:    cfg,
	}, nil
}

// Store загружает изображение в бакет и возвращает ключ объекта.
func (s *S3Store) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("images/%s%s", uuid.New().String(), extensionFor(contentType))

	putInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}

	if _, err := s.s3Svc.PutObjectWithContext(ctx, putInput); err != nil {
		s.logger.Error("Failed to upload object to S3",
			zap.String("bucket", s.cfg.Bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload object to s3: %w", err)
	}

	s.logger.Debug("Object uploaded to S3", zap.String("key", key), zap.Int("size_bytes", len(data)))
	return key, nil
}

// GetURL возвращает presigned URL на объект с ограниченным сроком жизни.
func (s *S3Store) GetURL(_ context.Context, ref string) (string, error) {
	req, _ := s.s3Svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(ref),
	})
	signedURL, err := req.Presign(s.cfg.URLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign s3 url: %w", err)
	}
	return signedURL, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
