package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"go-servicetag-scanner/internal/ids"
)

// WebcamCamera captures a single frame from a local video device.
type WebcamCamera struct {
	backDevice   int
	captureDir   string
	warmupFrames int
}

// NewWebcamCamera creates a camera bound to the device index used as the
// rear camera. Captured frames are written as JPEG files under captureDir.
func NewWebcamCamera(backDevice int, captureDir string) *WebcamCamera {
	return &WebcamCamera{
		backDevice:   backDevice,
		captureDir:   captureDir,
		warmupFrames: 5, // let auto exposure settle
	}
}

func (w *WebcamCamera) Launch(ctx context.Context, opts Options) (Response, error) {
	if ctx.Err() != nil {
		return Response{DidCancel: true}, nil
	}
	if opts.MediaKind != "photo" {
		return Response{ErrorMessage: fmt.Sprintf("unsupported media kind %q", opts.MediaKind)}, nil
	}
	if opts.CameraFacing != "back" {
		return Response{ErrorMessage: fmt.Sprintf("no %s camera configured", opts.CameraFacing)}, nil
	}

	webcam, err := gocv.OpenVideoCapture(w.backDevice)
	if err != nil {
		return Response{ErrorMessage: fmt.Sprintf("open camera device %d: %v", w.backDevice, err)}, nil
	}
	defer webcam.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i <= w.warmupFrames; i++ {
		if ctx.Err() != nil {
			return Response{DidCancel: true}, nil
		}
		if ok := webcam.Read(&frame); !ok {
			return Response{ErrorMessage: fmt.Sprintf("camera device %d stopped delivering frames", w.backDevice)}, nil
		}
	}
	if frame.Empty() {
		return Response{}, nil
	}

	if err := os.MkdirAll(w.captureDir, 0o755); err != nil {
		return Response{ErrorMessage: fmt.Sprintf("prepare capture directory: %v", err)}, nil
	}
	name := ids.New() + ".jpg"
	path := filepath.Join(w.captureDir, name)
	if ok := gocv.IMWrite(path, frame); !ok {
		return Response{ErrorMessage: fmt.Sprintf("failed to write capture %s", path)}, nil
	}

	return Response{Assets: []Asset{{
		URI:      fileURI(path),
		FileName: name,
		Type:     DefaultMediaType,
	}}}, nil
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
