package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"go-servicetag-scanner/internal/capture"
	apperrors "go-servicetag-scanner/internal/errors"
	"go-servicetag-scanner/internal/storage"
	"go-servicetag-scanner/pkg/validation"
)

// SchemeImageRepository implements ImageRepository by dispatching on the
// location scheme of the reference. A bare path is read as a local file.
type SchemeImageRepository struct {
	sources   map[string]storage.ImageSource
	uris      *validation.URLValidator
	validator *validator.Validate
}

// NewSchemeImageRepository creates a repository that reads file references.
// Register further sources with WithSource.
func NewSchemeImageRepository() *SchemeImageRepository {
	file := storage.NewFileImageSource()
	return &SchemeImageRepository{
		sources: map[string]storage.ImageSource{
			"":     file,
			"file": file,
		},
		uris:      validation.NewImageURIValidator(),
		validator: validator.New(),
	}
}

// WithSource registers a source for a location scheme
func (r *SchemeImageRepository) WithSource(scheme string, source storage.ImageSource) *SchemeImageRepository {
	r.sources[scheme] = source
	return r
}

// ValidateReference validates the reference fields and its location
func (r *SchemeImageRepository) ValidateReference(ref capture.ImageReference) error {
	if err := r.validator.Struct(ref); err != nil {
		return apperrors.NewValidationError("Invalid image reference", err)
	}
	return r.uris.ValidateURL(ref.URI)
}

// LoadImage reads the image bytes. Every failure wraps ErrImageUnreadable.
func (r *SchemeImageRepository) LoadImage(ctx context.Context, ref capture.ImageReference) ([]byte, error) {
	if err := r.ValidateReference(ref); err != nil {
		return nil, unreadable(ref, err)
	}

	u, err := url.Parse(ref.URI)
	if err != nil {
		return nil, unreadable(ref, err)
	}
	source, ok := r.sources[u.Scheme]
	if !ok {
		return nil, unreadable(ref, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme))
	}

	data, err := source.ReadImage(ctx, ref.URI)
	if err != nil {
		return nil, unreadable(ref, err)
	}
	return data, nil
}

func unreadable(ref capture.ImageReference, cause error) error {
	return apperrors.NewUnreadableError(
		fmt.Sprintf("cannot read image %s", ref.Name),
		fmt.Errorf("%w: %w", ErrImageUnreadable, cause),
	)
}
