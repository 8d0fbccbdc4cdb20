package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureImageSource reads photos uploaded to Azure Blob Storage by a phone
// companion app. References look like azblob://<container>/<blob path>.
type AzureImageSource struct {
	client   *azblob.Client
	maxBytes int64
}

func NewAzureImageSource(accountName string, accountKey string) (*AzureImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureImageSource{client: client, maxBytes: DefaultMaxImageBytes}, nil
}

func (s *AzureImageSource) ReadImage(ctx context.Context, uri string) ([]byte, error) {
	containerName, blobName, err := ParseBlobURI(uri)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	retryReader := downloadResponse.Body
	defer retryReader.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(retryReader, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	if n > s.maxBytes {
		return nil, fmt.Errorf("blob exceeds %d bytes", s.maxBytes)
	}
	return buf.Bytes(), nil
}

// ParseBlobURI splits azblob://container/path/to/blob into its parts.
func ParseBlobURI(uri string) (containerName, blobName string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URI: %w", err)
	}
	if u.Scheme != "azblob" {
		return "", "", fmt.Errorf("not a blob URI: %s", uri)
	}
	containerName = u.Host
	blobName = strings.TrimPrefix(u.Path, "/")
	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("blob URI must name a container and a blob: %s", uri)
	}
	return containerName, blobName, nil
}
