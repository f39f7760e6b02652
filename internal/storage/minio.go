package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dalildocs/internal/config"
)

// MinIOStore 将三个上传目录映射为 Bucket 内的对象前缀。
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: client, bucketName: cfg.Bucket}, nil
}

func (s *MinIOStore) objectKey(folder, filename string) (string, error) {
	if !AllowedFolder(folder) {
		return "", fmt.Errorf("folder %q is not allowed", folder)
	}
	cleaned := SanitizeFilename(filename)
	if cleaned == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return folder + "/" + cleaned, nil
}

// Save 将对象上传到 Bucket。
func (s *MinIOStore) Save(ctx context.Context, folder, filename string, reader io.Reader, size int64, contentType string) error {
	key, err := s.objectKey(folder, filename)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Open 读取对象内容。
func (s *MinIOStore) Open(ctx context.Context, folder, filename string) (io.ReadCloser, error) {
	key, err := s.objectKey(folder, filename)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	// GetObject 懒加载，读一个字节之前错误不会浮现；Stat 提前暴露 NoSuchKey。
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if IsNoSuchKey(err) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return obj, nil
}

// Delete 删除对象。对象不存在视为成功（幂等）。
func (s *MinIOStore) Delete(ctx context.Context, folder, filename string) error {
	key, err := s.objectKey(folder, filename)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		if IsNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// PresignedURL 生成对象的限时下载链接。
func (s *MinIOStore) PresignedURL(ctx context.Context, folder, filename string, duration time.Duration) (string, error) {
	key, err := s.objectKey(folder, filename)
	if err != nil {
		return "", err
	}
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucketName, key, duration, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", key, err)
	}
	return presignedURL.String(), nil
}

// IsNoSuchKey 判断错误是否明确表示对象不存在（S3/MinIO: NoSuchKey/NotFound）。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch strings.ToLower(strings.TrimSpace(minioErr.Code)) {
		case "nosuchkey", "notfound":
			return true
		}
	}

	// 兜底：不同网关/代理可能会把错误包装成字符串。
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") ||
		strings.Contains(lower, "specified key does not exist") ||
		strings.Contains(lower, "not found")
}
