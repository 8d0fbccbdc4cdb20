package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileImageSource reads photos the camera wrote to the local filesystem.
// It accepts file:// URIs and bare paths.
type FileImageSource struct{}

func NewFileImageSource() *FileImageSource {
	return &FileImageSource{}
}

func (f *FileImageSource) ReadImage(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := LocalPath(uri)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image file %s is empty", path)
	}
	return data, nil
}

// LocalPath turns a file:// URI or a bare path into a filesystem path.
func LocalPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid file URI: %w", err)
	}
	switch u.Scheme {
	case "":
		return filepath.FromSlash(uri), nil
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("file URI host %q is not local", u.Host)
		}
		if u.Path == "" {
			return "", fmt.Errorf("file URI has no path")
		}
		return filepath.FromSlash(u.Path), nil
	default:
		return "", fmt.Errorf("not a file URI: %s", uri)
	}
}
