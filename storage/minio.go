package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wyfcoding/bayes/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient 实现了 Storage 接口，是对接 MinIO 或 S3 兼容存储系统的具体驱动。
type MinIOClient struct {
	mu     sync.RWMutex
	client *minio.Client
	bucket string
}

// NewMinIOClient 构造一个新的 MinIO 存储驱动。
func NewMinIOClient(cfg config.MinioConfig) (*MinIOClient, error) {
	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("minio_client initialized", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)
	return &MinIOClient{client: client, bucket: cfg.BucketName}, nil
}

func (c *MinIOClient) snapshot() (*minio.Client, string, error) {
	if c == nil {
		return nil, "", errors.New("minio client is nil")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, "", errors.New("minio client not initialized")
	}
	return c.client, c.bucket, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Put 将数据流上传至绑定的存储桶，同名对象被覆盖。
func (c *MinIOClient) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	client, bucket, err := c.snapshot()
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = client.PutObject(ctx, bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		slog.Error("minio upload failed", "object", name, "error", err)
		return ErrStorageUnavailable.WithDetail("put %s", name).WithCause(err)
	}
	slog.Debug("minio upload successful", "object", name, "duration", time.Since(start))
	return nil
}

// Get 读取对象。GetObject 是惰性的，先 Stat 以便区分对象不存在.
func (c *MinIOClient) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	client, bucket, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	if _, err := client.StatObject(ctx, bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail("object %q", name)
		}
		return nil, ErrStorageUnavailable.WithDetail("stat %s", name).WithCause(err)
	}
	obj, err := client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, ErrStorageUnavailable.WithDetail("get %s", name).WithCause(err)
	}
	return obj, nil
}

// List 递归列出前缀下的全部对象。
func (c *MinIOClient) List(ctx context.Context, prefix string) ([]string, error) {
	client, bucket, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	var names []string
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, ErrStorageUnavailable.WithDetail("list %q", prefix).WithCause(obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// Delete 删除对象。
func (c *MinIOClient) Delete(ctx context.Context, name string) error {
	client, bucket, err := c.snapshot()
	if err != nil {
		return err
	}
	if err := client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return ErrStorageUnavailable.WithDetail("delete %s", name).WithCause(err)
	}
	return nil
}

// Exists 检查对象是否存在.
func (c *MinIOClient) Exists(ctx context.Context, name string) (bool, error) {
	client, bucket, err := c.snapshot()
	if err != nil {
		return false, err
	}
	_, err = client.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, ErrStorageUnavailable.WithDetail("stat %s", name).WithCause(err)
	}
	return true, nil
}

// UpdateConfig 使用最新配置刷新 MinIO 客户端。
func (c *MinIOClient) UpdateConfig(cfg config.MinioConfig) error {
	if c == nil {
		return errors.New("minio client is nil")
	}
	client, err := newMinioClient(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.client = client
	c.bucket = cfg.BucketName
	c.mu.Unlock()

	slog.Info("minio client updated", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)
	return nil
}

// RegisterReloadHook 注册 MinIO 客户端热更新回调。
func RegisterReloadHook(client *MinIOClient) {
	if client == nil {
		return
	}
	config.RegisterReloadHook(func(updated *config.Config) {
		if updated == nil {
			return
		}
		if err := client.UpdateConfig(updated.Minio); err != nil {
			slog.Error("minio client reload failed", "error", err)
		}
	})
}

func newMinioClient(cfg config.MinioConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, config.ErrMissingKey.WithDetail("minio endpoint and bucket_name are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		slog.Error("failed to create minio client", "endpoint", cfg.Endpoint, "error", err)
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}
