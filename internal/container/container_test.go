package container

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-servicetag-scanner/internal/capture"
	"go-servicetag-scanner/internal/config"
	"go-servicetag-scanner/internal/pipeline"
)

type fileCamera struct {
	path string
}

func (f fileCamera) Launch(ctx context.Context, opts capture.Options) (capture.Response, error) {
	return capture.Response{Assets: []capture.Asset{{URI: f.path, FileName: "tag.jpg"}}}, nil
}

func TestContainer_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recognition := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("image"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"service_tag":"ABC1234"}`)
	}))
	defer recognition.Close()

	dir := t.TempDir()
	photo := filepath.Join(dir, "tag.jpg")
	if err := os.WriteFile(photo, []byte{0xFF, 0xD8, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		RequestTimeout:   time.Second,
		RecognitionURL:   recognition.URL,
		UploadTimeout:    5 * time.Second,
		MaxResponseBytes: 1 << 20,
		CameraType:       "webcam",
		CaptureDir:       dir,
		MaxUploadBytes:   1 << 20,
	}
	c, err := NewContainerWithCamera(cfg, fileCamera{path: photo})
	if err != nil {
		t.Fatalf("NewContainerWithCamera() error = %v", err)
	}

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/capture", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /capture status = %d, body %s", w.Code, w.Body.String())
	}

	c.Shutdown()

	st := c.Pipeline().State()
	if st.Kind != pipeline.StateDone || st.Result == nil || st.Result.Tag != "ABC1234" {
		t.Fatalf("final state = %+v", st)
	}

	w = httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `"detected":1`) {
		t.Errorf("metrics = %s", w.Body.String())
	}
}
