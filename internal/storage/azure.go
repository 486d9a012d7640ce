package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/weiwangfds/melodia/internal/logger"
)

// AzureProvider stores blobs in one Azure Blob Storage container and signs
// read URLs with service SAS tokens.
type AzureProvider struct {
	client     *azblob.Client
	cred       *azblob.SharedKeyCredential
	serviceURL string
	container  string
}

// NewAzureProvider builds a shared-key client for cfg.
func NewAzureProvider(cfg AzureConfig) (*AzureProvider, error) {
	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}
	logger.Infof("[storage/azure] account: %s, container: %s, service: %s", cfg.AccountName, cfg.Container, serviceURL)

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureProvider{
		client:     client,
		cred:       cred,
		serviceURL: serviceURL,
		container:  cfg.Container,
	}, nil
}

// Name implements Provider.
func (p *AzureProvider) Name() string { return ProviderAzure }

// Upload implements Provider.
func (p *AzureProvider) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := p.client.UploadStream(ctx, p.container, key, r, opts); err != nil {
		return fmt.Errorf("failed to upload %s to azure: %w", key, err)
	}
	return nil
}

// Delete implements Provider.
func (p *AzureProvider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteBlob(ctx, p.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete %s from azure: %w", key, err)
	}
	return nil
}

// Exists implements Provider.
func (p *AzureProvider) Exists(ctx context.Context, key string) (bool, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(p.container).NewBlobClient(key)
	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s on azure: %w", key, err)
}

// SignedURL returns the blob URL with a read-only SAS valid for expiry.
// The start time is backdated to tolerate clock skew.
func (p *AzureProvider) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	protocol := sas.ProtocolHTTPS
	if strings.HasPrefix(p.serviceURL, "http://") {
		protocol = sas.ProtocolHTTPSandHTTP
	}

	qp, err := sas.BlobSignatureValues{
		Protocol:      protocol,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(expiry),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: p.container,
		BlobName:      key,
	}.SignWithSharedKey(p.cred)
	if err != nil {
		return "", fmt.Errorf("failed to sign SAS for %s: %w", key, err)
	}

	return fmt.Sprintf("%s%s/%s?%s", p.serviceURL, url.PathEscape(p.container), escapeBlobPath(key), qp.Encode()), nil
}

// TestConnection reads the container properties.
func (p *AzureProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.ServiceClient().NewContainerClient(p.container).GetProperties(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to reach azure container %s: %w", p.container, err)
	}
	return nil
}

func escapeBlobPath(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
