package container

import (
	"context"
	"fmt"
	"net/http"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/config"
	"go-servicetag-scanner/internal/factory"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/observer"
	"go-servicetag-scanner/internal/pipeline"
	"go-servicetag-scanner/internal/recognition"
	"go-servicetag-scanner/internal/repository"
	"go-servicetag-scanner/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config            *config.Config
	camera            capture.Camera
	imageRepository   repository.ImageRepository
	captureController *capture.Controller
	recognizer        *recognition.Client
	publisher         *observer.EventPublisher
	metrics           *observer.MetricsObserver
	hub               *transport.EventHub
	pipeline          *pipeline.Pipeline
	handler           http.Handler
	cancelRuns        context.CancelFunc
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithCamera(cfg, nil)
}

// NewContainerWithCamera builds the graph around the given camera, or the
// configured one when camera is nil.
func NewContainerWithCamera(cfg *config.Config, camera capture.Camera) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	if camera == nil {
		var err error
		camera, err = components.CameraFactory.CreateCamera(factory.CameraType(cfg.CameraType))
		if err != nil {
			return nil, fmt.Errorf("failed to create camera: %w", err)
		}
	}

	imageRepository, err := components.RepositoryFactory.CreateImageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to create image repository: %w", err)
	}

	captureController := capture.NewController(camera)
	recognizer := recognition.NewClient(cfg.RecognitionURL, imageRepository, cfg.UploadTimeout, cfg.MaxResponseBytes)

	metrics := observer.NewMetricsObserver()
	hub := transport.NewEventHub()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)
	publisher.Subscribe(hub)

	p := pipeline.New(captureController, recognizer, publisher)

	runCtx, cancelRuns := context.WithCancel(context.Background())
	handler := transport.NewHandler(runCtx, p, metrics, hub, cfg.MaxUploadBytes)

	return &Container{
		config:            cfg,
		camera:            camera,
		imageRepository:   imageRepository,
		captureController: captureController,
		recognizer:        recognizer,
		publisher:         publisher,
		metrics:           metrics,
		hub:               hub,
		pipeline:          p,
		handler:           handler,
		cancelRuns:        cancelRuns,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Pipeline returns the capture pipeline
func (c *Container) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Shutdown cancels a capture that is still waiting on the camera, waits for
// the active run to finish and disconnects event clients. An upload already
// in flight completes.
func (c *Container) Shutdown() {
	c.cancelRuns()
	c.pipeline.Wait()
	c.hub.Close()
}
