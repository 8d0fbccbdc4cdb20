package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/pkg/models"
)

// PipelineEvent is emitted on every pipeline state change
type PipelineEvent struct {
	EventType EventType     `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	State     string        `json:"state"`
	ImageURI  string        `json:"image_uri,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Tag       string        `json:"tag,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// RunStarted when a capture request is accepted
	RunStarted EventType = "run_started"
	// ImageCaptured when the camera produced a photo and the upload begins
	ImageCaptured EventType = "image_captured"
	// RunCompleted when the recognition endpoint answered or the upload failed
	RunCompleted EventType = "run_completed"
	// RunFailed when the capture step ended without a photo
	RunFailed EventType = "run_failed"
)

// OutcomeCancelled marks a RunFailed event caused by the user dismissing the camera
const OutcomeCancelled = "cancelled"

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"run_id":     event.RunID,
		"state":      event.State,
	}
	if event.ImageURI != "" {
		fields["image_uri"] = event.ImageURI
	}
	if event.Outcome != "" {
		fields["outcome"] = event.Outcome
	}
	if event.Tag != "" {
		fields["service_tag"] = event.Tag
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}

	switch event.EventType {
	case RunStarted:
		o.logger.WithFields(fields).Info("Capture run started")
	case ImageCaptured:
		o.logger.WithFields(fields).Info("Image captured, uploading")
	case RunCompleted:
		o.logger.WithFields(fields).Info("Capture run completed")
	case RunFailed:
		o.logger.WithFields(fields).Warn("Capture run failed")
	default:
		o.logger.WithFields(fields).Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects run counters from pipeline events
type MetricsObserver struct {
	mu              sync.RWMutex
	runsStarted     int64
	detected        int64
	notDetected     int64
	transportFailed int64
	captureFailed   int64
	cancelled       int64
	finishedRuns    int64
	totalRunTime    time.Duration
	lastRunID       string
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RunStarted:
		o.runsStarted++
		o.lastRunID = event.RunID
	case RunCompleted:
		switch event.Outcome {
		case "detected":
			o.detected++
		case "not_detected":
			o.notDetected++
		case "transport_failed":
			o.transportFailed++
		}
		o.finishedRuns++
		o.totalRunTime += event.Duration
	case RunFailed:
		// the user backing out of the camera is not a failure
		if event.Outcome == OutcomeCancelled {
			o.cancelled++
		} else {
			o.captureFailed++
		}
		o.finishedRuns++
		o.totalRunTime += event.Duration
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() models.PipelineMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := 0.0
	if o.finishedRuns > 0 {
		avg = (o.totalRunTime / time.Duration(o.finishedRuns)).Seconds()
	}

	return models.PipelineMetrics{
		RunsStarted:     o.runsStarted,
		Detected:        o.detected,
		NotDetected:     o.notDetected,
		TransportFailed: o.transportFailed,
		CaptureFailed:   o.captureFailed,
		Cancelled:       o.cancelled,
		AvgRunSeconds:   avg,
		LastRunID:       o.lastRunID,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription
// order. Observers must not block; a panicking observer is logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event PipelineEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
