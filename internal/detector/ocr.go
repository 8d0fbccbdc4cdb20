package detector

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TextReader runs OCR over an encoded image
type TextReader interface {
	ReadLines(image []byte) ([]string, error)
}

// TesseractReader reads text with a fresh tesseract client per call, so it
// is safe to use from several workers at once.
type TesseractReader struct {
	language string
}

func NewTesseractReader(language string) *TesseractReader {
	if language == "" {
		language = "eng"
	}
	return &TesseractReader{language: language}
}

func (r *TesseractReader) ReadLines(image []byte) ([]string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return nil, fmt.Errorf("set OCR language %s: %w", r.language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("load image into OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	return SplitLines(text), nil
}
