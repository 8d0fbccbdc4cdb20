package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go-servicetag-scanner/internal/capture"
	apperrors "go-servicetag-scanner/internal/errors"
)

type stubSource struct {
	data  []byte
	err   error
	calls int
}

func (s *stubSource) ReadImage(ctx context.Context, uri string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func TestSchemeImageRepository_LoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tag.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	remote := &stubSource{data: []byte("remote")}
	repo := NewSchemeImageRepository().WithSource("https", remote)

	tests := []struct {
		name    string
		ref     capture.ImageReference
		want    string
		wantErr bool
	}{
		{
			name: "bare path",
			ref:  capture.ImageReference{URI: path, Name: "tag.jpg", MediaType: "image/jpeg"},
			want: "jpeg",
		},
		{
			name: "file uri",
			ref:  capture.ImageReference{URI: "file://" + filepath.ToSlash(path), Name: "tag.jpg", MediaType: "image/jpeg"},
			want: "jpeg",
		},
		{
			name: "registered scheme",
			ref:  capture.ImageReference{URI: "https://phone.local/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg"},
			want: "remote",
		},
		{
			name:    "missing file",
			ref:     capture.ImageReference{URI: filepath.Join(dir, "gone.jpg"), Name: "gone.jpg", MediaType: "image/jpeg"},
			wantErr: true,
		},
		{
			name:    "scheme without source",
			ref:     capture.ImageReference{URI: "azblob://captures/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg"},
			wantErr: true,
		},
		{
			name:    "incomplete reference",
			ref:     capture.ImageReference{URI: path},
			wantErr: true,
		},
		{
			name:    "scheme not allowed",
			ref:     capture.ImageReference{URI: "ftp://host/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := repo.LoadImage(context.Background(), tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrImageUnreadable) {
					t.Errorf("error %v does not wrap ErrImageUnreadable", err)
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeUnreadable) {
					t.Errorf("error %v is not an unreadable AppError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("LoadImage() = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestSchemeImageRepository_UnsupportedScheme(t *testing.T) {
	repo := NewSchemeImageRepository()
	ref := capture.ImageReference{URI: "http://phone.local/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg"}

	_, err := repo.LoadImage(context.Background(), ref)
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestSchemeImageRepository_SourceError(t *testing.T) {
	failing := &stubSource{err: errors.New("connection reset")}
	repo := NewSchemeImageRepository().WithSource("http", failing)
	ref := capture.ImageReference{URI: "http://phone.local/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg"}

	_, err := repo.LoadImage(context.Background(), ref)
	if !errors.Is(err, ErrImageUnreadable) {
		t.Errorf("expected ErrImageUnreadable, got %v", err)
	}
	if failing.calls != 1 {
		t.Errorf("source called %d times, want 1", failing.calls)
	}
}
