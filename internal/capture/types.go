package capture

import "context"

// DefaultMediaType is assumed when the camera does not report one.
const DefaultMediaType = "image/jpeg"

// ImageReference is an immutable handle to a captured photo.
type ImageReference struct {
	URI       string `json:"uri" validate:"required"`
	Name      string `json:"name" validate:"required"`
	MediaType string `json:"media_type" validate:"required"`
}

// OutcomeKind identifies which case of a capture Outcome holds
type OutcomeKind string

const (
	OutcomeCancelled    OutcomeKind = "cancelled"
	OutcomeCameraFailed OutcomeKind = "camera_failed"
	OutcomeCaptured     OutcomeKind = "captured"
	OutcomeNoImage      OutcomeKind = "no_image"
)

// Outcome is the normalized result of one camera interaction. Exactly one
// case holds; build values with the constructors below.
type Outcome struct {
	Kind    OutcomeKind    `json:"kind"`
	Message string         `json:"message,omitempty"`
	Image   ImageReference `json:"image"`
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

func CameraFailed(message string) Outcome {
	return Outcome{Kind: OutcomeCameraFailed, Message: message}
}

func Captured(ref ImageReference) Outcome {
	return Outcome{Kind: OutcomeCaptured, Image: ref}
}

func NoImage() Outcome {
	return Outcome{Kind: OutcomeNoImage}
}

// Options is the capture configuration handed to the camera capability
type Options struct {
	MediaKind    string `json:"media_kind"`
	CameraFacing string `json:"camera_facing"`
}

// PhotoFromBackCamera is the only configuration the controller requests.
var PhotoFromBackCamera = Options{MediaKind: "photo", CameraFacing: "back"}

// Asset is one item returned by the camera capability
type Asset struct {
	URI      string `json:"uri"`
	FileName string `json:"file_name,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Response is the raw result of a camera invocation. A cancel signal, an error
// message, a list of assets or nothing at all may be reported.
type Response struct {
	DidCancel    bool    `json:"did_cancel"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Assets       []Asset `json:"assets,omitempty"`
}

// Camera is the device camera capability. Launch blocks until the user has
// taken a photo, cancelled, or the device reported a problem.
type Camera interface {
	Launch(ctx context.Context, opts Options) (Response, error)
}
