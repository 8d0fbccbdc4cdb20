package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		RequestTimeout: time.Second,
		CameraType:     "directory",
		CaptureDir:     t.TempDir(),
		InboxDir:       t.TempDir(),
	}
}

func TestCameraFactory_CreateCamera(t *testing.T) {
	cfg := testConfig(t)
	f := NewCameraFactory(cfg)

	cam, err := f.CreateCamera(DirectoryCamera)
	if err != nil {
		t.Fatalf("CreateCamera(directory) error = %v", err)
	}
	if _, ok := cam.(*capture.DirectoryCamera); !ok {
		t.Errorf("CreateCamera(directory) = %T", cam)
	}

	cam, err = f.CreateCamera("WEBCAM")
	if err != nil {
		t.Fatalf("CreateCamera(webcam) error = %v", err)
	}
	if _, ok := cam.(*capture.WebcamCamera); !ok {
		t.Errorf("CreateCamera(webcam) = %T", cam)
	}

	if _, err := f.CreateCamera("drone"); err == nil {
		t.Error("expected error for unsupported camera type")
	}

	cfg.InboxDir = ""
	if _, err := f.CreateCamera(DirectoryCamera); err == nil {
		t.Error("expected error for directory camera without inbox")
	}
}

func TestRepositoryFactory_ReadsLocalCaptures(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.CaptureDir, "tag.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo, err := NewRepositoryFactory(cfg).CreateImageRepository()
	if err != nil {
		t.Fatalf("CreateImageRepository() error = %v", err)
	}

	data, err := repo.LoadImage(context.Background(), capture.ImageReference{
		URI: path, Name: "tag.jpg", MediaType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("LoadImage() = %q", data)
	}

	_, err = repo.LoadImage(context.Background(), capture.ImageReference{
		URI: "azblob://captures/tag.jpg", Name: "tag.jpg", MediaType: "image/jpeg",
	})
	if err == nil {
		t.Error("azblob references must fail without azure credentials")
	}
}
