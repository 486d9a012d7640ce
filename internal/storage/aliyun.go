package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/melodia/internal/logger"
)

// AliyunProvider 阿里云 OSS 存储
type AliyunProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
}

// NewAliyunProvider 创建阿里云 OSS 客户端并连接存储桶
func NewAliyunProvider(cfg AliyunConfig) (*AliyunProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}
	logger.Infof("[storage/aliyun] endpoint: %s, bucket: %s", endpoint, cfg.Bucket)

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunProvider{client: client, bucket: bucket, name: cfg.Bucket}, nil
}

// Name 返回存储提供商名称
func (p *AliyunProvider) Name() string { return ProviderAliyun }

// Upload 上传对象
func (p *AliyunProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := p.bucket.PutObject(key, r, options...); err != nil {
		return fmt.Errorf("failed to upload %s to aliyun oss: %w", key, err)
	}
	return nil
}

// Delete 删除对象，OSS 删除不存在的对象视为成功
func (p *AliyunProvider) Delete(ctx context.Context, key string) error {
	if err := p.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete %s from aliyun oss: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *AliyunProvider) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := p.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check %s on aliyun oss: %w", key, err)
	}
	return exists, nil
}

// SignedURL 生成带过期时间的签名访问链接
func (p *AliyunProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	signed, err := p.bucket.SignURL(key, oss.HTTPGet, int64(expiry.Seconds()))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s on aliyun oss: %w", key, err)
	}
	return signed, nil
}

// TestConnection 读取存储桶信息以测试连接
func (p *AliyunProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.GetBucketInfo(p.name); err != nil {
		return fmt.Errorf("failed to reach aliyun bucket %s: %w", p.name, err)
	}
	return nil
}
