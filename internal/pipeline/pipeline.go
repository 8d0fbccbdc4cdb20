package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/ids"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/observer"
	"go-servicetag-scanner/internal/recognition"
)

// ErrRunInProgress is returned when a capture is requested while a run is
// still capturing or uploading.
var ErrRunInProgress = errors.New("capture already in progress")

// Capturer takes one photo per call
type Capturer interface {
	RequestCapture(ctx context.Context) capture.Outcome
}

// Recognizer submits one photo per call
type Recognizer interface {
	Submit(ctx context.Context, ref capture.ImageReference) recognition.Outcome
}

// Pipeline sequences capture and upload for one run at a time and owns the
// resulting state.
type Pipeline struct {
	mu         sync.RWMutex
	state      State
	capturer   Capturer
	recognizer Recognizer
	events     observer.Subject
	wg         sync.WaitGroup
	now        func() time.Time
}

// New creates an idle pipeline. events may be nil.
func New(capturer Capturer, recognizer Recognizer, events observer.Subject) *Pipeline {
	return &Pipeline{
		state:      State{Kind: StateIdle},
		capturer:   capturer,
		recognizer: recognizer,
		events:     events,
		now:        time.Now,
	}
}

// State returns a snapshot of the current state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone()
}

// Start begins a run in the background and returns the Capturing state.
// The context governs the capture step only.
func (p *Pipeline) Start(ctx context.Context) (State, error) {
	st, err := p.begin(true)
	if err != nil {
		return st, err
	}

	go func() {
		defer p.wg.Done()
		p.execute(ctx, st.RunID)
	}()
	return st, nil
}

// Run performs a whole run and returns its terminal state.
func (p *Pipeline) Run(ctx context.Context) (State, error) {
	st, err := p.begin(false)
	if err != nil {
		return st, err
	}
	return p.execute(ctx, st.RunID), nil
}

// Wait blocks until background runs have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// begin claims the pipeline for a new run. Background runs are counted in
// the wait group before the lock is released so Wait cannot miss them.
func (p *Pipeline) begin(background bool) (State, error) {
	p.mu.Lock()
	if isRunning(p.state.Kind) {
		current := p.state.clone()
		p.mu.Unlock()
		return current, ErrRunInProgress
	}

	started := p.now()
	// previous image and outcome are dropped here
	p.state = State{
		Kind:      StateCapturing,
		RunID:     ids.New(),
		StartedAt: &started,
	}
	st := p.state.clone()
	if background {
		p.wg.Add(1)
	}
	p.mu.Unlock()

	p.publish(observer.RunStarted, st)
	return st, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string) (final State) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("run_id", runID).WithField("panic", r).Error("Pipeline run panicked")
			final = p.abort(runID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	outcome := p.capturer.RequestCapture(ctx)

	switch outcome.Kind {
	case capture.OutcomeCaptured:
	case capture.OutcomeCancelled:
		return p.fail(runID, capture.CancelledMessage)
	case capture.OutcomeCameraFailed:
		reason := outcome.Message
		if reason == "" {
			reason = "Camera error."
		}
		return p.fail(runID, reason)
	default:
		return p.fail(runID, capture.NoImageMessage)
	}

	image := outcome.Image
	st, err := p.transition(runID, StateUploading, func(s *State) {
		s.Image = &image
	})
	if err != nil {
		logger.WithError(err).Error("Failed to enter uploading state")
		return st
	}
	p.publish(observer.ImageCaptured, st)

	// Once issued, the upload runs to completion.
	result := p.recognizer.Submit(context.WithoutCancel(ctx), image)
	return p.finish(runID, result)
}

func (p *Pipeline) fail(runID, reason string) State {
	st, err := p.transition(runID, StateFailed, func(s *State) {
		s.Reason = reason
		s.stamp(p.now())
	})
	if err != nil {
		logger.WithError(err).Error("Failed to enter failed state")
		return st
	}
	p.publish(observer.RunFailed, st)
	return st
}

func (p *Pipeline) finish(runID string, result recognition.Outcome) State {
	st, err := p.transition(runID, StateDone, func(s *State) {
		s.Result = &result
		s.stamp(p.now())
	})
	if err != nil {
		logger.WithError(err).Error("Failed to enter done state")
		return st
	}
	p.publish(observer.RunCompleted, st)
	return st
}

// abort moves a run that blew up to whichever terminal state is reachable.
func (p *Pipeline) abort(runID, reason string) State {
	if p.State().Kind == StateUploading {
		return p.finish(runID, recognition.TransportFailed(reason))
	}
	return p.fail(runID, reason)
}

// transition applies a validated state change on behalf of runID.
func (p *Pipeline) transition(runID string, to StateKind, apply func(*State)) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.RunID != runID {
		return p.state.clone(), fmt.Errorf("run %s no longer owns the pipeline", runID)
	}
	if !isValidTransition(p.state.Kind, to) {
		return p.state.clone(), fmt.Errorf("invalid transition: %s -> %s", p.state.Kind, to)
	}

	p.state.Kind = to
	if apply != nil {
		apply(&p.state)
	}
	return p.state.clone(), nil
}

func (p *Pipeline) publish(eventType observer.EventType, st State) {
	if p.events == nil {
		return
	}

	event := observer.PipelineEvent{
		EventType: eventType,
		Timestamp: p.now(),
		RunID:     st.RunID,
		State:     string(st.Kind),
		Reason:    st.Reason,
	}
	if st.Image != nil {
		event.ImageURI = st.Image.URI
	}
	if st.Result != nil {
		event.Outcome = string(st.Result.Kind)
		event.Tag = st.Result.Tag
		if st.Result.Kind == recognition.OutcomeTransportFailed {
			event.Reason = st.Result.Message
		}
	}
	if eventType == observer.RunFailed && st.Reason == capture.CancelledMessage {
		event.Outcome = observer.OutcomeCancelled
	}
	if st.Terminal() {
		event.Duration = st.Duration()
	}
	p.events.NotifyObservers(context.Background(), event)
}
