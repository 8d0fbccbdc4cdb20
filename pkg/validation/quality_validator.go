package validation

// QualityThresholds bounds what counts as a readable label photo
type QualityThresholds struct {
	// Sharpness (Laplacian variance)
	MinLaplacianVariance float64
	MaxLaplacianVariance float64

	// Mean gray level, 0-255
	MinBrightness float64
	MaxBrightness float64

	// Resolution
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds returns thresholds tuned for OCR of small printed labels
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 300.0,
		MaxLaplacianVariance: 4000.0,
		MinBrightness:        60.0,
		MaxBrightness:        230.0,
		MinWidth:             640,
		MinHeight:            480,
	}
}

// WithMinSharpness overrides the blur threshold; values <= 0 disable it
func (t QualityThresholds) WithMinSharpness(v float64) QualityThresholds {
	t.MinLaplacianVariance = v
	return t
}

// Issue types reported by ValidateLabelPhoto
const (
	IssueBlurriness    = "blurriness"
	IssueNoise         = "over_sharpening"
	IssueTooDark       = "too_dark"
	IssueTooBright     = "too_bright"
	IssueLowResolution = "low_resolution"
	SeverityWarning    = "warning"
)

// QualityValidator flags photos that are likely to defeat OCR
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return NewQualityValidatorWithThresholds(DefaultQualityThresholds())
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{thresholds: thresholds}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ImageQualityMetrics are measured once per upload by the preprocessor
type ImageQualityMetrics struct {
	Width        int
	Height       int
	LaplacianVar float64
	Brightness   float64
}

// ValidateLabelPhoto reports every threshold the photo misses. Issues are
// advisory: detection still runs, but a failed detection with issues
// usually means the photo should be retaken.
func (qv *QualityValidator) ValidateLabelPhoto(m ImageQualityMetrics) []QualityIssue {
	var issues []QualityIssue
	t := qv.thresholds

	if t.MinLaplacianVariance > 0 && m.LaplacianVar < t.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        IssueBlurriness,
			Message:     "Image is blurry. Hold the camera steady and move closer to the label.",
			Severity:    SeverityWarning,
			ActualValue: m.LaplacianVar,
			Threshold:   t.MinLaplacianVariance,
		})
	} else if t.MaxLaplacianVariance > 0 && m.LaplacianVar > t.MaxLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        IssueNoise,
			Message:     "Image is noisy. Avoid digital zoom.",
			Severity:    SeverityWarning,
			ActualValue: m.LaplacianVar,
			Threshold:   t.MaxLaplacianVariance,
		})
	}

	if m.Brightness < t.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        IssueTooDark,
			Message:     "Image is too dark. Use more light.",
			Severity:    SeverityWarning,
			ActualValue: m.Brightness,
			Threshold:   t.MinBrightness,
		})
	} else if t.MaxBrightness > 0 && m.Brightness > t.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        IssueTooBright,
			Message:     "Image is too bright. Avoid glare on the label.",
			Severity:    SeverityWarning,
			ActualValue: m.Brightness,
			Threshold:   t.MaxBrightness,
		})
	}

	if m.Width < t.MinWidth || m.Height < t.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        IssueLowResolution,
			Message:     "Image resolution is too low for the label text.",
			Severity:    SeverityWarning,
			ActualValue: float64(m.Width * m.Height),
			Threshold:   float64(t.MinWidth * t.MinHeight),
		})
	}

	return issues
}

// HasIssue reports whether issues contains the given type
func HasIssue(issues []QualityIssue, issueType string) bool {
	for _, issue := range issues {
		if issue.Type == issueType {
			return true
		}
	}
	return false
}
