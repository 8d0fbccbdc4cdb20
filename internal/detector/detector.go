package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/pkg/validation"
)

// ErrNoTag is returned when no pass produced a service tag
var ErrNoTag = errors.New("no service tag found")

// Result describes a successful detection
type Result struct {
	Tag       string
	Pass      string
	Sharpness float64
	Blurry    bool
	Issues    []validation.QualityIssue
}

// Detector finds Dell service tags in photos. OCR passes for one upload run
// in parallel on a shared worker pool; the earliest pass that yields a tag
// wins so results match a sequential run.
type Detector struct {
	reader    TextReader
	pre       Preprocessor
	extractor *Extractor
	quality   *validation.QualityValidator
	pool      *WorkerPool
}

func New(reader TextReader, pre Preprocessor, opts Options) *Detector {
	pool := NewWorkerPool(opts.MaxWorkers)
	pool.Start()

	thresholds := validation.DefaultQualityThresholds().WithMinSharpness(opts.BlurThreshold)

	return &Detector{
		reader:    reader,
		pre:       pre,
		extractor: NewExtractor(opts.FuzzyLabelDistance),
		quality:   validation.NewQualityValidatorWithThresholds(thresholds),
		pool:      pool,
	}
}

// NewDefault wires tesseract and OpenCV with the given options
func NewDefault(opts Options) *Detector {
	return New(NewTesseractReader(opts.Language), NewOpenCVPreprocessor(opts), opts)
}

type passResult struct {
	tag string
	err error
}

func (d *Detector) Detect(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	prepared, err := d.pre.Prepare(data)
	if err != nil {
		return Result{}, err
	}

	issues := d.quality.ValidateLabelPhoto(prepared.Metrics)
	for _, issue := range issues {
		logger.WithFields(logrus.Fields{
			"issue":     issue.Type,
			"value":     issue.ActualValue,
			"threshold": issue.Threshold,
		}).Debug("Upload quality issue")
	}

	results := make([]passResult, len(prepared.Passes))
	var wg sync.WaitGroup
	for i, pass := range prepared.Passes {
		wg.Add(1)
		d.pool.Submit(func() {
			defer wg.Done()
			results[i] = d.runPass(pass)
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	var firstErr error
	for i, r := range results {
		if r.err != nil {
			logger.WithError(r.err).WithField("pass", prepared.Passes[i].Name).Warn("OCR pass failed")
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		if r.tag != "" {
			return Result{
				Tag:       r.tag,
				Pass:      prepared.Passes[i].Name,
				Sharpness: prepared.Metrics.LaplacianVar,
				Blurry:    validation.HasIssue(issues, validation.IssueBlurriness),
				Issues:    issues,
			}, nil
		}
	}

	if firstErr != nil && allFailed(results) {
		return Result{}, fmt.Errorf("all OCR passes failed: %w", firstErr)
	}
	if len(issues) > 0 {
		logger.WithField("issues", len(issues)).Info("No tag found in a photo with quality issues")
	}
	return Result{}, ErrNoTag
}

func (d *Detector) runPass(pass Pass) (r passResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r = passResult{err: fmt.Errorf("OCR pass %s panicked: %v", pass.Name, rec)}
		}
	}()

	lines, err := d.reader.ReadLines(pass.Image)
	if err != nil {
		return passResult{err: err}
	}
	tag, _ := d.extractor.Extract(lines)
	return passResult{tag: tag}
}

func allFailed(results []passResult) bool {
	for _, r := range results {
		if r.err == nil {
			return false
		}
	}
	return true
}

// Close stops the worker pool
func (d *Detector) Close() {
	d.pool.Close()
}
