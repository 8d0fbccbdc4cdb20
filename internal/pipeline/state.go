package pipeline

import (
	"fmt"
	"time"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/recognition"
)

// StateKind is one node of the pipeline state machine
type StateKind string

const (
	StateIdle      StateKind = "idle"
	StateCapturing StateKind = "capturing"
	StateUploading StateKind = "uploading"
	StateDone      StateKind = "done"
	StateFailed    StateKind = "failed"
)

// NotDetectedMessage is shown when the endpoint found no tag.
const NotDetectedMessage = "Service Tag not detected"

// State is a snapshot of the pipeline. Image is set from Uploading on,
// Result only in Done and Reason only in Failed.
type State struct {
	Kind       StateKind               `json:"state"`
	RunID      string                  `json:"run_id,omitempty"`
	Image      *capture.ImageReference `json:"image,omitempty"`
	Result     *recognition.Outcome    `json:"result,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// Active reports whether a run currently owns the pipeline.
func (s State) Active() bool {
	return isRunning(s.Kind)
}

// Terminal reports whether the last run has finished.
func (s State) Terminal() bool {
	return s.Kind == StateDone || s.Kind == StateFailed
}

// DisplayMessage is the text the UI shows for the state.
func (s State) DisplayMessage() string {
	switch s.Kind {
	case StateCapturing:
		return "Waiting for camera..."
	case StateUploading:
		return "Uploading image..."
	case StateFailed:
		return s.Reason
	case StateDone:
		if s.Result == nil {
			return ""
		}
		switch s.Result.Kind {
		case recognition.OutcomeDetected:
			return fmt.Sprintf("Detected: %s", s.Result.Tag)
		case recognition.OutcomeNotDetected:
			return fmt.Sprintf("Detected: %s", NotDetectedMessage)
		default:
			return fmt.Sprintf("Failed to upload image: %s", s.Result.Message)
		}
	default:
		return ""
	}
}

// Duration returns how long the run took, or has taken so far.
func (s State) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}

func (s *State) stamp(t time.Time) {
	s.FinishedAt = &t
}

func (s State) clone() State {
	out := s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	if s.Result != nil {
		res := *s.Result
		out.Result = &res
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// isRunning checks if a state represents an active run.
func isRunning(kind StateKind) bool {
	switch kind {
	case StateCapturing, StateUploading:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed state machine edges.
func isValidTransition(from, to StateKind) bool {
	switch from {
	case StateIdle, StateDone, StateFailed:
		return to == StateCapturing
	case StateCapturing:
		return to == StateUploading || to == StateFailed
	case StateUploading:
		return to == StateDone
	default:
		return false
	}
}
