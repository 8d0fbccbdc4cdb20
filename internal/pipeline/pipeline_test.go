package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/observer"
	"go-servicetag-scanner/internal/recognition"
)

var testImage = capture.ImageReference{URI: "file:///captures/a.jpg", Name: "a.jpg", MediaType: "image/jpeg"}

type stubCapturer struct {
	mu       sync.Mutex
	outcomes []capture.Outcome
	calls    int
	release  chan struct{}
	entered  chan struct{}
}

func (s *stubCapturer) RequestCapture(ctx context.Context) capture.Outcome {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return out
}

type stubRecognizer struct {
	mu      sync.Mutex
	result  recognition.Outcome
	calls   int
	refs    []capture.ImageReference
	ctxErrs []error
	release chan struct{}
	entered chan struct{}
	panics  bool
}

func (s *stubRecognizer) Submit(ctx context.Context, ref capture.ImageReference) recognition.Outcome {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.panics {
		panic("decoder exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.refs = append(s.refs, ref)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.result
}

type eventLog struct {
	mu     sync.Mutex
	events []observer.PipelineEvent
}

func (e *eventLog) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventLog) GetObserverName() string { return "event_log" }

func (e *eventLog) types() []observer.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]observer.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.EventType)
	}
	return out
}

func newTestPipeline(c Capturer, r Recognizer) (*Pipeline, *eventLog) {
	pub := observer.NewEventPublisher()
	log := &eventLog{}
	pub.Subscribe(log)
	return New(c, r, pub), log
}

func TestPipeline_StartsIdle(t *testing.T) {
	p, _ := newTestPipeline(&stubCapturer{}, &stubRecognizer{})
	st := p.State()
	if st.Kind != StateIdle || st.Active() || st.Terminal() {
		t.Errorf("new pipeline state = %+v, want idle", st)
	}
}

func TestPipeline_Run_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		capture    capture.Outcome
		result     recognition.Outcome
		wantKind   StateKind
		wantReason string
		wantResult *recognition.Outcome
		wantUpload bool
		wantEvents []observer.EventType
	}{
		{
			name:       "tag detected",
			capture:    capture.Captured(testImage),
			result:     recognition.Detected("ABC1234"),
			wantKind:   StateDone,
			wantResult: &recognition.Outcome{Kind: recognition.OutcomeDetected, Tag: "ABC1234"},
			wantUpload: true,
			wantEvents: []observer.EventType{observer.RunStarted, observer.ImageCaptured, observer.RunCompleted},
		},
		{
			name:       "not detected",
			capture:    capture.Captured(testImage),
			result:     recognition.NotDetected(),
			wantKind:   StateDone,
			wantResult: &recognition.Outcome{Kind: recognition.OutcomeNotDetected},
			wantUpload: true,
			wantEvents: []observer.EventType{observer.RunStarted, observer.ImageCaptured, observer.RunCompleted},
		},
		{
			name:       "transport failure",
			capture:    capture.Captured(testImage),
			result:     recognition.TransportFailed("connection refused"),
			wantKind:   StateDone,
			wantResult: &recognition.Outcome{Kind: recognition.OutcomeTransportFailed, Message: "connection refused"},
			wantUpload: true,
			wantEvents: []observer.EventType{observer.RunStarted, observer.ImageCaptured, observer.RunCompleted},
		},
		{
			name:       "user cancelled",
			capture:    capture.Cancelled(),
			wantKind:   StateFailed,
			wantReason: "User cancelled camera.",
			wantEvents: []observer.EventType{observer.RunStarted, observer.RunFailed},
		},
		{
			name:       "camera error",
			capture:    capture.CameraFailed("Camera permission denied"),
			wantKind:   StateFailed,
			wantReason: "Camera permission denied",
			wantEvents: []observer.EventType{observer.RunStarted, observer.RunFailed},
		},
		{
			name:       "no image",
			capture:    capture.NoImage(),
			wantKind:   StateFailed,
			wantReason: "No image captured.",
			wantEvents: []observer.EventType{observer.RunStarted, observer.RunFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecognizer{result: tt.result}
			p, log := newTestPipeline(&stubCapturer{outcomes: []capture.Outcome{tt.capture}}, rec)

			st, err := p.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if st.Kind != tt.wantKind {
				t.Fatalf("Run() state = %s, want %s", st.Kind, tt.wantKind)
			}
			if st.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", st.Reason, tt.wantReason)
			}
			if (st.Result == nil) != (tt.wantResult == nil) || (st.Result != nil && *st.Result != *tt.wantResult) {
				t.Errorf("Result = %+v, want %+v", st.Result, tt.wantResult)
			}
			if st.FinishedAt == nil {
				t.Error("terminal state should carry a finish time")
			}

			if tt.wantUpload {
				if rec.calls != 1 {
					t.Errorf("recognizer called %d times, want 1", rec.calls)
				}
				if st.Image == nil || *st.Image != testImage {
					t.Errorf("Image = %+v, want %+v", st.Image, testImage)
				}
			} else {
				if rec.calls != 0 {
					t.Errorf("recognizer must not be called, got %d calls", rec.calls)
				}
				if st.Image != nil {
					t.Errorf("failed capture must not carry an image, got %+v", st.Image)
				}
			}

			if got := log.types(); !equalEvents(got, tt.wantEvents) {
				t.Errorf("events = %v, want %v", got, tt.wantEvents)
			}
			if p.State().Kind != tt.wantKind {
				t.Errorf("State() = %s after Run, want %s", p.State().Kind, tt.wantKind)
			}
		})
	}
}

func TestPipeline_RejectsOverlappingRuns(t *testing.T) {
	cam := &stubCapturer{
		outcomes: []capture.Outcome{capture.Captured(testImage)},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	rec := &stubRecognizer{
		result:  recognition.Detected("ABC1234"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p, _ := newTestPipeline(cam, rec)

	first, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.Kind != StateCapturing {
		t.Fatalf("Start() state = %s, want capturing", first.Kind)
	}
	<-cam.entered

	if _, err := p.Start(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second Start() while capturing error = %v, want ErrRunInProgress", err)
	}
	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("Run() while capturing error = %v, want ErrRunInProgress", err)
	}

	close(cam.release)
	<-rec.entered
	if st := p.State(); st.Kind != StateUploading || st.RunID != first.RunID {
		t.Fatalf("state = %+v, want uploading for run %s", st, first.RunID)
	}
	if _, err := p.Start(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("Start() while uploading error = %v, want ErrRunInProgress", err)
	}

	close(rec.release)
	p.Wait()

	st := p.State()
	if st.Kind != StateDone || st.RunID != first.RunID {
		t.Errorf("final state = %+v, want done for run %s", st, first.RunID)
	}
	if cam.calls != 1 || rec.calls != 1 {
		t.Errorf("rejected requests reached collaborators: capture=%d upload=%d", cam.calls, rec.calls)
	}
}

func TestPipeline_UploadIgnoresCancellation(t *testing.T) {
	rec := &stubRecognizer{
		result:  recognition.Detected("ABC1234"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p, _ := newTestPipeline(&stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage)}}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-rec.entered
	cancel()
	close(rec.release)
	p.Wait()

	if rec.ctxErrs[0] != nil {
		t.Errorf("upload context was cancelled: %v", rec.ctxErrs[0])
	}
	if st := p.State(); st.Kind != StateDone || st.Result.Kind != recognition.OutcomeDetected {
		t.Errorf("final state = %+v, want done with detected tag", st)
	}
}

func TestPipeline_NewRunDiscardsPreviousResult(t *testing.T) {
	cam := &stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage), capture.Cancelled()}}
	p, _ := newTestPipeline(cam, &stubRecognizer{result: recognition.Detected("ABC1234")})

	first, _ := p.Run(context.Background())
	if first.Kind != StateDone || first.Result == nil {
		t.Fatalf("first run = %+v, want done with result", first)
	}

	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.RunID == first.RunID {
		t.Error("second run reused the first run id")
	}
	if second.Kind != StateFailed || second.Reason != "User cancelled camera." {
		t.Errorf("second run = %+v, want failed by cancel", second)
	}
	if second.Image != nil || second.Result != nil {
		t.Errorf("second run leaked previous image or result: %+v", second)
	}
}

func TestPipeline_RepeatedRunsAreIndependent(t *testing.T) {
	cam := &stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage)}}
	rec := &stubRecognizer{result: recognition.NotDetected()}
	p, _ := newTestPipeline(cam, rec)

	a, _ := p.Run(context.Background())
	b, _ := p.Run(context.Background())

	if a.Kind != b.Kind || *a.Result != *b.Result || *a.Image != *b.Image {
		t.Errorf("identical runs diverged: %+v vs %+v", a, b)
	}
	if rec.calls != 2 {
		t.Errorf("recognizer calls = %d, want 2", rec.calls)
	}
}

func TestPipeline_RecognizerPanicStillTerminates(t *testing.T) {
	rec := &stubRecognizer{panics: true}
	p, log := newTestPipeline(&stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage)}}, rec)

	st, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st.Kind != StateDone || st.Result == nil || st.Result.Kind != recognition.OutcomeTransportFailed {
		t.Fatalf("state = %+v, want done with transport failure", st)
	}
	if got := log.types(); got[len(got)-1] != observer.RunCompleted {
		t.Errorf("last event = %s, want run_completed", got[len(got)-1])
	}

	// the pipeline accepts a new run afterwards
	rec.panics = false
	rec.result = recognition.Detected("ABC1234")
	if st, err := p.Run(context.Background()); err != nil || st.Kind != StateDone {
		t.Errorf("follow-up Run() = %+v, %v", st, err)
	}
}

func TestPipeline_SnapshotsAreCopies(t *testing.T) {
	p, _ := newTestPipeline(
		&stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage)}},
		&stubRecognizer{result: recognition.Detected("ABC1234")},
	)
	st, _ := p.Run(context.Background())
	st.Image.URI = "tampered"
	st.Result.Tag = "tampered"

	again := p.State()
	if again.Image.URI != testImage.URI || again.Result.Tag != "ABC1234" {
		t.Errorf("State() shares memory with callers: %+v", again)
	}
}

func TestIsValidTransition(t *testing.T) {
	valid := [][2]StateKind{
		{StateIdle, StateCapturing},
		{StateCapturing, StateUploading},
		{StateCapturing, StateFailed},
		{StateUploading, StateDone},
		{StateDone, StateCapturing},
		{StateFailed, StateCapturing},
	}
	for _, edge := range valid {
		if !isValidTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be valid", edge[0], edge[1])
		}
	}

	invalid := [][2]StateKind{
		{StateIdle, StateUploading},
		{StateIdle, StateDone},
		{StateCapturing, StateDone},
		{StateUploading, StateFailed},
		{StateUploading, StateCapturing},
		{StateDone, StateFailed},
	}
	for _, edge := range invalid {
		if isValidTransition(edge[0], edge[1]) {
			t.Errorf("%s -> %s should be rejected", edge[0], edge[1])
		}
	}
}

func TestState_DisplayMessage(t *testing.T) {
	detected := recognition.Detected("ABC1234")
	missing := recognition.NotDetected()
	failed := recognition.TransportFailed("timeout")

	tests := []struct {
		state State
		want  string
	}{
		{State{Kind: StateIdle}, ""},
		{State{Kind: StateFailed, Reason: "No image captured."}, "No image captured."},
		{State{Kind: StateDone, Result: &detected}, "Detected: ABC1234"},
		{State{Kind: StateDone, Result: &missing}, "Detected: Service Tag not detected"},
		{State{Kind: StateDone, Result: &failed}, "Failed to upload image: timeout"},
	}
	for _, tt := range tests {
		if got := tt.state.DisplayMessage(); got != tt.want {
			t.Errorf("DisplayMessage(%+v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	st := State{StartedAt: &start, FinishedAt: &end}
	if st.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", st.Duration())
	}
}

func equalEvents(a, b []observer.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitOnStart calls Wait from another goroutine as soon as a run is
// announced, i.e. before Start has returned.
type waitOnStart struct {
	p      *Pipeline
	states chan State
}

func (w *waitOnStart) OnEvent(ctx context.Context, event observer.PipelineEvent) {
	if event.EventType != observer.RunStarted {
		return
	}
	go func() {
		w.p.Wait()
		w.states <- w.p.State()
	}()
}

func (w *waitOnStart) GetObserverName() string { return "wait_on_start" }

func TestPipeline_WaitCoversRunBeingStarted(t *testing.T) {
	release := make(chan struct{})
	pub := observer.NewEventPublisher()
	waiter := &waitOnStart{states: make(chan State, 1)}
	pub.Subscribe(waiter)

	capturer := &stubCapturer{outcomes: []capture.Outcome{capture.Captured(testImage)}, release: release}
	p := New(capturer, &stubRecognizer{result: recognition.Detected("ABC1234")}, pub)
	waiter.p = p

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case st := <-waiter.states:
		t.Fatalf("Wait() returned while run was %s", st.Kind)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case st := <-waiter.states:
		if st.Kind != StateDone {
			t.Errorf("state after Wait() = %s, want done", st.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the run finished")
	}
}

func TestPipeline_FailedEventsMarkCancellation(t *testing.T) {
	tests := []struct {
		name        string
		outcome     capture.Outcome
		wantOutcome string
	}{
		{name: "user cancelled", outcome: capture.Cancelled(), wantOutcome: observer.OutcomeCancelled},
		{name: "camera failed", outcome: capture.CameraFailed("Camera not available"), wantOutcome: ""},
		{name: "no image", outcome: capture.NoImage(), wantOutcome: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, log := newTestPipeline(&stubCapturer{outcomes: []capture.Outcome{tt.outcome}}, &stubRecognizer{})
			if _, err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			log.mu.Lock()
			last := log.events[len(log.events)-1]
			log.mu.Unlock()

			if last.EventType != observer.RunFailed {
				t.Fatalf("last event = %s, want run_failed", last.EventType)
			}
			if last.Outcome != tt.wantOutcome {
				t.Errorf("event outcome = %q, want %q", last.Outcome, tt.wantOutcome)
			}
		})
	}
}
