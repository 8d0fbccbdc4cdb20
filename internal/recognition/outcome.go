package recognition

// OutcomeKind identifies which case of a recognition Outcome holds
type OutcomeKind string

const (
	OutcomeDetected        OutcomeKind = "detected"
	OutcomeNotDetected     OutcomeKind = "not_detected"
	OutcomeTransportFailed OutcomeKind = "transport_failed"
)

// Outcome is the result of one recognition request. Tag is only set for
// Detected, Message only for TransportFailed.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message,omitempty"`
}

func Detected(tag string) Outcome {
	return Outcome{Kind: OutcomeDetected, Tag: tag}
}

func NotDetected() Outcome {
	return Outcome{Kind: OutcomeNotDetected}
}

func TransportFailed(message string) Outcome {
	return Outcome{Kind: OutcomeTransportFailed, Message: message}
}
