package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageSource reads the raw bytes of a stored photo
type ImageSource interface {
	ReadImage(ctx context.Context, uri string) ([]byte, error)
}

// DefaultMaxImageBytes caps how much of a remote image is read into memory.
const DefaultMaxImageBytes = 20 << 20

// HTTPImageSource reads images published over http(s), for example a phone
// that serves its gallery on the local network.
type HTTPImageSource struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageSource creates an HTTP image source tuned for single downloads.
// Each read is one attempt; failures surface to the caller unchanged.
func NewHTTPImageSource(timeout time.Duration) *HTTPImageSource {
	transport := &http.Transport{
		// Connection pooling sized for one image at a time
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: DefaultMaxImageBytes,
	}
}

func (h *HTTPImageSource) ReadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "ServiceTag-Scanner/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", h.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image body is empty")
	}
	return data, nil
}
