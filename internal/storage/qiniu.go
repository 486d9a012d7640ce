package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	kodo "github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/melodia/internal/logger"
)

// QiniuProvider 七牛云 Kodo 存储，使用私有空间下载链接
type QiniuProvider struct {
	mac    *qbox.Mac
	bucket string
	domain string
	region *kodo.Region
}

// NewQiniuProvider 创建七牛云客户端并解析存储区域
func NewQiniuProvider(cfg QiniuConfig) (*QiniuProvider, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)
	region, err := kodo.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}
	logger.Infof("[storage/qiniu] bucket: %s, domain: %s", cfg.Bucket, cfg.Domain)

	return &QiniuProvider{
		mac:    mac,
		bucket: cfg.Bucket,
		domain: strings.TrimRight(cfg.Domain, "/"),
		region: region,
	}, nil
}

// Name 返回存储提供商名称
func (p *QiniuProvider) Name() string { return ProviderQiniu }

func (p *QiniuProvider) manager() *kodo.BucketManager {
	return kodo.NewBucketManager(p.mac, &kodo.Config{Region: p.region, UseHTTPS: true})
}

// Upload 上传对象
func (p *QiniuProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	putPolicy := kodo.PutPolicy{Scope: fmt.Sprintf("%s:%s", p.bucket, key)}
	upToken := putPolicy.UploadToken(p.mac)

	uploader := kodo.NewFormUploader(&kodo.Config{Region: p.region, UseHTTPS: true})
	ret := kodo.PutRet{}
	extra := kodo.PutExtra{}
	if contentType != "" {
		extra.MimeType = contentType
	}
	if err := uploader.Put(ctx, &ret, upToken, key, r, size, &extra); err != nil {
		return fmt.Errorf("failed to upload %s to qiniu kodo: %w", key, err)
	}
	return nil
}

// Delete 删除对象
func (p *QiniuProvider) Delete(ctx context.Context, key string) error {
	if err := p.manager().Delete(p.bucket, key); err != nil && !isQiniuNotFound(err) {
		return fmt.Errorf("failed to delete %s from qiniu kodo: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *QiniuProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.manager().Stat(p.bucket, key)
	if err == nil {
		return true, nil
	}
	if isQiniuNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s on qiniu kodo: %w", key, err)
}

// SignedURL 生成带过期时间的签名访问链接
func (p *QiniuProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	deadline := time.Now().Add(expiry).Unix()
	return kodo.MakePrivateURL(p.mac, p.domain, key, deadline), nil
}

// TestConnection 列出至多一个对象以测试连接
func (p *QiniuProvider) TestConnection(ctx context.Context) error {
	if _, _, _, _, err := p.manager().ListFiles(p.bucket, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to reach qiniu bucket %s: %w", p.bucket, err)
	}
	return nil
}

func isQiniuNotFound(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
