package recognition

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/internal/capture"
	apperrors "go-servicetag-scanner/internal/errors"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/repository"
)

// Wire names expected by the recognition endpoint.
const (
	FieldName      = "image"
	UploadFileName = "service_tag.jpg"
	TagKey         = "service_tag"
)

// DefaultMaxResponseBytes caps how much of a recognition response is read.
const DefaultMaxResponseBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client submits captured photos to the recognition endpoint. Every Submit
// issues at most one request and never retries.
type Client struct {
	endpoint         string
	images           repository.ImageRepository
	httpClient       *http.Client
	maxResponseBytes int64
}

// NewClient creates a recognition client. The timeout bounds the whole
// exchange and is enforced by the transport.
func NewClient(endpoint string, images repository.ImageRepository, timeout time.Duration, maxResponseBytes int64) *Client {
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}
	return &Client{
		endpoint: endpoint,
		images:   images,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		maxResponseBytes: maxResponseBytes,
	}
}

// Submit uploads the referenced photo and maps the response to an Outcome.
func (c *Client) Submit(ctx context.Context, ref capture.ImageReference) Outcome {
	log := logger.WithFields(logrus.Fields{
		"endpoint": c.endpoint,
		"image":    ref.URI,
	})

	data, err := c.images.LoadImage(ctx, ref)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeUnreadable) {
			log.WithError(err).Warn("Image unreadable, upload skipped")
		} else {
			log.WithError(err).Error("Image repository failed, upload skipped")
		}
		return TransportFailed(err.Error())
	}

	contentType, body, err := NewUploadBody(ref, data)
	if err != nil {
		return TransportFailed(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return TransportFailed(err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Recognition request failed")
		return TransportFailed(err.Error())
	}
	defer resp.Body.Close()

	log = log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Indistinguishable from "no tag" for the user; kept in the log only.
		log.Warn("Recognition endpoint returned a non-success status")
		return NotDetected()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		log.WithError(err).Error("Failed to read recognition response")
		return TransportFailed(err.Error())
	}

	outcome := ParseResponse(raw)
	log.WithField("outcome", outcome.Kind).Info("Recognition completed")
	return outcome
}

// ParseResponse maps a 2xx response body to an Outcome.
func ParseResponse(raw []byte) Outcome {
	if len(bytes.TrimSpace(raw)) == 0 {
		return TransportFailed("invalid recognition response: empty body")
	}
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TransportFailed(fmt.Sprintf("invalid recognition response: %v", err))
	}
	// Valid JSON that is not an object simply carries no tag.
	fields, _ := payload.(map[string]interface{})
	if tag, ok := fields[TagKey].(string); ok && tag != "" {
		return Detected(tag)
	}
	return NotDetected()
}

// NewUploadBody encodes the photo as a single-part multipart form.
func NewUploadBody(ref capture.ImageReference, data []byte) (string, *bytes.Buffer, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	mediaType := ref.MediaType
	if mediaType == "" {
		mediaType = capture.DefaultMediaType
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldName, UploadFileName))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", nil, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return writer.FormDataContentType(), body, nil
}
