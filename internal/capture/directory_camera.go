package capture

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-servicetag-scanner/internal/ids"
)

var pickableExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// DirectoryCamera picks the newest photo dropped into an inbox directory by a
// tethered phone or scanner. The picked file is moved into captureDir so that
// the same photo is never handed out twice.
type DirectoryCamera struct {
	inboxDir   string
	captureDir string
}

func NewDirectoryCamera(inboxDir, captureDir string) *DirectoryCamera {
	return &DirectoryCamera{inboxDir: inboxDir, captureDir: captureDir}
}

func (d *DirectoryCamera) Launch(ctx context.Context, opts Options) (Response, error) {
	if ctx.Err() != nil {
		return Response{DidCancel: true}, nil
	}
	if opts.MediaKind != "photo" {
		return Response{ErrorMessage: fmt.Sprintf("unsupported media kind %q", opts.MediaKind)}, nil
	}

	entries, err := os.ReadDir(d.inboxDir)
	if err != nil {
		return Response{ErrorMessage: fmt.Sprintf("read inbox: %v", err)}, nil
	}

	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !pickableExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = entry.Name()
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return Response{}, nil
	}

	if err := os.MkdirAll(d.captureDir, 0o755); err != nil {
		return Response{ErrorMessage: fmt.Sprintf("prepare capture directory: %v", err)}, nil
	}
	ext := strings.ToLower(filepath.Ext(newest))
	target := filepath.Join(d.captureDir, ids.New()+ext)
	if err := os.Rename(filepath.Join(d.inboxDir, newest), target); err != nil {
		return Response{ErrorMessage: fmt.Sprintf("claim %s: %v", newest, err)}, nil
	}

	mediaType := mime.TypeByExtension(ext)
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return Response{Assets: []Asset{{
		URI:      fileURI(target),
		FileName: newest,
		Type:     mediaType,
	}}}, nil
}
