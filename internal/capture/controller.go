package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/internal/logger"
)

// Messages reported to the user for capture attempts that produce no photo.
const (
	CancelledMessage = "User cancelled camera."
	NoImageMessage   = "No image captured."
)

// Controller asks the camera for exactly one rear-facing photo per request
// and normalizes whatever comes back into an Outcome.
type Controller struct {
	camera Camera
}

func NewController(camera Camera) *Controller {
	return &Controller{camera: camera}
}

// RequestCapture invokes the camera once and returns exactly one Outcome.
func (c *Controller) RequestCapture(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Camera capability panicked")
			outcome = CameraFailed(fmt.Sprintf("camera failure: %v", r))
		}
	}()

	resp, err := c.camera.Launch(ctx, PhotoFromBackCamera)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Cancelled()
		}
		logger.WithError(err).Warn("Camera capability returned an error")
		return CameraFailed(err.Error())
	}

	outcome = Normalize(resp)
	logger.WithFields(logrus.Fields{
		"outcome": outcome.Kind,
		"uri":     outcome.Image.URI,
	}).Debug("Capture completed")
	return outcome
}

// Normalize maps a raw camera response to an Outcome. Cancellation wins over
// an error message, and only the first asset is used.
func Normalize(resp Response) Outcome {
	switch {
	case resp.DidCancel:
		return Cancelled()
	case resp.ErrorMessage != "":
		return CameraFailed(resp.ErrorMessage)
	case len(resp.Assets) > 0:
		asset := resp.Assets[0]
		if strings.TrimSpace(asset.URI) == "" {
			return NoImage()
		}
		return Captured(ImageReference{
			URI:       asset.URI,
			Name:      displayName(asset),
			MediaType: mediaType(asset),
		})
	default:
		return NoImage()
	}
}

func displayName(asset Asset) string {
	if asset.FileName != "" {
		return asset.FileName
	}
	p := asset.URI
	if u, err := url.Parse(asset.URI); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}

func mediaType(asset Asset) string {
	if asset.Type != "" {
		return asset.Type
	}
	return DefaultMediaType
}
