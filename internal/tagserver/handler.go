package tagserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/internal/detector"
	apperrors "go-servicetag-scanner/internal/errors"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/transport"
	"go-servicetag-scanner/pkg/models"
)

const (
	// ImageField is the multipart field carrying the photo
	ImageField = "image"

	noImageMessage = "No image uploaded"
	noTagMessage   = "No service tag found"
)

// TagDetector finds a service tag in an encoded photo
type TagDetector interface {
	Detect(ctx context.Context, data []byte) (detector.Result, error)
}

// NewHandler builds the recognition endpoint the capture pipeline uploads to
func NewHandler(det TagDetector, maxUploadBytes int64) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		transport.RequestLogger(),
		transport.RequestSizeLimiter(maxUploadBytes),
	)

	r.GET("/health", healthCheck)
	r.POST("/upload", upload(det))

	return r
}

func upload(det TagDetector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		data, err := readImage(c)
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				respondError(c, http.StatusRequestEntityTooLarge, "Image too large", err)
			case errors.Is(err, http.ErrMissingFile):
				respondError(c, http.StatusBadRequest, noImageMessage, err)
			default:
				respondError(c, http.StatusBadRequest, "Invalid upload", err)
			}
			return
		}

		result, err := det.Detect(c.Request.Context(), data)
		if err != nil {
			appErr := classify(err)
			respondError(c, appErr.StatusCode, appErr.Message, err)
			return
		}

		elapsed := time.Since(start)
		logger.WithFields(logrus.Fields{
			"service_tag": result.Tag,
			"pass":        result.Pass,
			"sharpness":   result.Sharpness,
			"blurry":      result.Blurry,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("Service tag detected")

		resp := models.RecognitionResponse{
			ServiceTag: result.Tag,
			Pass:       result.Pass,
			Sharpness:  result.Sharpness,
			Blurry:     result.Blurry,
			ElapsedMs:  elapsed.Milliseconds(),
		}
		for _, issue := range result.Issues {
			resp.Warnings = append(resp.Warnings, issue.Message)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(ImageField)
	if err != nil {
		return nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, http.ErrMissingFile
	}
	return data, nil
}

func classify(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, detector.ErrNoTag):
		return apperrors.NewNotFoundError(noTagMessage, err)
	case errors.Is(err, detector.ErrUndecodable):
		return apperrors.NewUnreadableError("Image could not be decoded", err)
	case errors.Is(err, context.DeadlineExceeded):
		return &apperrors.AppError{
			Type:       apperrors.ErrorTypeTransport,
			Message:    "Detection timed out",
			StatusCode: http.StatusGatewayTimeout,
			Cause:      err,
		}
	default:
		return apperrors.NewInternalError("Processing error", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Service: "servicetag-detector",
	})
}

// respondError keeps the body to {"error": message}; clients treat any
// non-2xx as "not detected" and never parse it.
func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Info(message)
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{Error: message})
}
