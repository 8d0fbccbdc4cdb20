package factory

import (
	"fmt"
	"strings"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/config"
	"go-servicetag-scanner/internal/repository"
	"go-servicetag-scanner/internal/storage"
)

// CameraType represents the available camera capabilities
type CameraType string

const (
	// WebcamCamera grabs a frame from a local video device
	WebcamCamera CameraType = "webcam"
	// DirectoryCamera picks photos dropped into an inbox directory
	DirectoryCamera CameraType = "directory"
)

// CameraFactory creates camera capabilities
type CameraFactory interface {
	CreateCamera(cameraType CameraType) (capture.Camera, error)
}

// cameraFactory implements CameraFactory
type cameraFactory struct {
	cfg *config.Config
}

// NewCameraFactory creates a new camera factory
func NewCameraFactory(cfg *config.Config) CameraFactory {
	return &cameraFactory{cfg: cfg}
}

// CreateCamera creates a camera based on the specified type
func (f *cameraFactory) CreateCamera(cameraType CameraType) (capture.Camera, error) {
	switch CameraType(strings.ToLower(string(cameraType))) {
	case WebcamCamera:
		return capture.NewWebcamCamera(f.cfg.CameraDevice, f.cfg.CaptureDir), nil
	case DirectoryCamera:
		if f.cfg.InboxDir == "" {
			return nil, fmt.Errorf("directory camera requires INBOX_DIR")
		}
		return capture.NewDirectoryCamera(f.cfg.InboxDir, f.cfg.CaptureDir), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cameraType)
	}
}

// RepositoryFactory creates the image repository
type RepositoryFactory interface {
	CreateImageRepository() (repository.ImageRepository, error)
}

// repositoryFactory implements RepositoryFactory
type repositoryFactory struct {
	cfg *config.Config
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config) RepositoryFactory {
	return &repositoryFactory{cfg: cfg}
}

// CreateImageRepository registers a source for every location scheme the
// configuration supports. Local files are always readable.
func (f *repositoryFactory) CreateImageRepository() (repository.ImageRepository, error) {
	repo := repository.NewSchemeImageRepository()

	remote := storage.NewHTTPImageSource(f.cfg.RequestTimeout)
	repo.WithSource("http", remote).WithSource("https", remote)

	if f.cfg.AzureEnabled() {
		blobs, err := storage.NewAzureImageSource(f.cfg.AzureAccountName, f.cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("azure image source: %w", err)
		}
		repo.WithSource("azblob", blobs)
	}

	return repo, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	CameraFactory     CameraFactory
	RepositoryFactory RepositoryFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		CameraFactory:     NewCameraFactory(cfg),
		RepositoryFactory: NewRepositoryFactory(cfg),
	}
}
