// Package objectstore сохраняет загруженные оригиналы изображений в S3-совместимом хранилище.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/mirage-ghibli/internal/config"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store загружает объекты в один бакет.
type Store struct {
	client *s3.Client
	bucket string
}

// New создает клиент S3. Пустой endpoint означает AWS S3, иначе используется
// path-style адресация (MinIO и аналоги).
func New(ctx context.Context, cfg config.ObjectStore) (*Store, error) {
	const op = "objectstore.New"

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, bucket: cfg.S3Bucket}, nil
}

// OriginalKey возвращает ключ объекта для нового оригинала.
func OriginalKey(now time.Time, mimeType string) string {
	return fmt.Sprintf("originals/%04d/%02d/%02d/%s%s",
		now.Year(), now.Month(), now.Day(), uuid.NewString(), extensions[mimeType])
}

// PutOriginal загружает изображение и возвращает ключ объекта.
func (s *Store) PutOriginal(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "objectstore.PutOriginal"

	key := OriginalKey(time.Now().UTC(), mimeType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}
