package detector

// Options configures service tag detection
type Options struct {
	// OCR
	Language string

	// Adaptive threshold pass
	SkipThresholdPass bool
	ThresholdBlock    int
	ThresholdC        float32

	// Quality
	BlurThreshold float64

	// Extraction
	FuzzyLabelDistance int

	// Performance
	MaxWorkers int
}

// DefaultOptions mirrors the hosted detection service: Gaussian adaptive
// threshold with an 11px block and C=2, English OCR.
func DefaultOptions() Options {
	return Options{
		Language:           "eng",
		ThresholdBlock:     11,
		ThresholdC:         2,
		BlurThreshold:      300.0,
		FuzzyLabelDistance: 2,
		MaxWorkers:         0, // Use default CPU count
	}
}

// FastOptions only OCRs the original image
func FastOptions() Options {
	opts := DefaultOptions()
	opts.SkipThresholdPass = true
	return opts
}

// WithLanguage sets the tesseract language
func (opts Options) WithLanguage(lang string) Options {
	if lang != "" {
		opts.Language = lang
	}
	return opts
}

// WithThreshold overrides the adaptive threshold parameters. Block sizes
// must be odd; even values are rounded up.
func (opts Options) WithThreshold(block int, c float32) Options {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	opts.ThresholdBlock = block
	opts.ThresholdC = c
	return opts
}

// WithExactLabels disables fuzzy matching of the "SERVICE TAG" label
func (opts Options) WithExactLabels() Options {
	opts.FuzzyLabelDistance = 0
	return opts
}
