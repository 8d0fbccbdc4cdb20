package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"go-servicetag-scanner/pkg/validation"
)

// ErrUndecodable is returned for uploads that are not a supported image
var ErrUndecodable = errors.New("image could not be decoded")

// Pass is one image handed to OCR. Passes are tried in order.
type Pass struct {
	Name  string
	Image []byte
}

// Prepared is the preprocessing result for one upload
type Prepared struct {
	Passes  []Pass
	Metrics validation.ImageQualityMetrics
}

// Preprocessor turns an uploaded photo into OCR passes
type Preprocessor interface {
	Prepare(data []byte) (Prepared, error)
}

// OpenCVPreprocessor keeps the original photo as the first pass and adds a
// Gaussian adaptive threshold of its grayscale version as the second.
type OpenCVPreprocessor struct {
	opts Options
}

func NewOpenCVPreprocessor(opts Options) *OpenCVPreprocessor {
	return &OpenCVPreprocessor{opts: opts}
}

func (p *OpenCVPreprocessor) Prepare(data []byte) (Prepared, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer img.Close()

	if img.Empty() {
		return Prepared{}, ErrUndecodable
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	prepared := Prepared{
		Passes: []Pass{{Name: "original", Image: data}},
		Metrics: validation.ImageQualityMetrics{
			Width:        img.Cols(),
			Height:       img.Rows(),
			LaplacianVar: laplacianVariance(gray),
			Brightness:   gray.Mean().Val1,
		},
	}
	if p.opts.SkipThresholdPass {
		return prepared, nil
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
		p.opts.ThresholdBlock, p.opts.ThresholdC)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, thresh)
	if err != nil {
		return Prepared{}, fmt.Errorf("encode threshold pass: %w", err)
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	prepared.Passes = append(prepared.Passes, Pass{Name: "threshold", Image: encoded})

	return prepared, nil
}

// laplacianVariance is the usual focus measure; low values mean blur.
func laplacianVariance(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}
