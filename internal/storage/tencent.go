package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/melodia/internal/logger"
)

// TencentProvider 腾讯云 COS 存储
type TencentProvider struct {
	client    *cos.Client
	secretID  string
	secretKey string
}

// NewTencentProvider 根据存储桶 URL 创建 COS 客户端
func NewTencentProvider(cfg TencentConfig) (*TencentProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	logger.Infof("[storage/tencent] bucket url: %s", bucketURL)

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentProvider{client: client, secretID: cfg.SecretID, secretKey: cfg.SecretKey}, nil
}

// Name 返回存储提供商名称
func (p *TencentProvider) Name() string { return ProviderTencent }

// Upload 上传对象
func (p *TencentProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := &cos.ObjectPutOptions{ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{}}
	if contentType != "" {
		options.ObjectPutHeaderOptions.ContentType = contentType
	}
	if size >= 0 {
		options.ObjectPutHeaderOptions.ContentLength = size
	}
	if _, err := p.client.Object.Put(ctx, key, r, options); err != nil {
		return fmt.Errorf("failed to upload %s to tencent cos: %w", key, err)
	}
	return nil
}

// Delete 删除对象
func (p *TencentProvider) Delete(ctx context.Context, key string) error {
	if _, err := p.client.Object.Delete(ctx, key); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete %s from tencent cos: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *TencentProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.Object.Head(ctx, key, nil)
	if err == nil {
		return true, nil
	}
	if cos.IsNotFoundError(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s on tencent cos: %w", key, err)
}

// SignedURL 生成带过期时间的签名访问链接
func (p *TencentProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := p.client.Object.GetPresignedURL(ctx, http.MethodGet, key, p.secretID, p.secretKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s on tencent cos: %w", key, err)
	}
	return u.String(), nil
}

// TestConnection 通过 HEAD 存储桶测试连接
func (p *TencentProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to reach tencent cos bucket: %w", err)
	}
	return nil
}
