package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-servicetag-scanner/internal/errors"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/pipeline"
	"go-servicetag-scanner/pkg/models"
)

// CaptureService is the part of the pipeline the UI drives
type CaptureService interface {
	Start(ctx context.Context) (pipeline.State, error)
	State() pipeline.State
}

// MetricsProvider exposes aggregated run counters
type MetricsProvider interface {
	GetMetrics() models.PipelineMetrics
}

// StateResponse is the JSON shape of a pipeline state for the UI
type StateResponse struct {
	pipeline.State
	Message string `json:"message,omitempty"`
}

func newStateResponse(st pipeline.State) StateResponse {
	return StateResponse{State: st, Message: st.DisplayMessage()}
}

// NewHandler builds the UI bridge. runCtx bounds background capture runs
// and is cancelled on shutdown.
func NewHandler(runCtx context.Context, svc CaptureService, metrics MetricsProvider, hub *EventHub, maxRequestBytes int64) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		RequestLogger(),
		RequestSizeLimiter(maxRequestBytes),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.POST("/capture", startCapture(runCtx, svc))
	r.GET("/state", currentState(svc))
	r.GET("/metrics", currentMetrics(metrics))
	if hub != nil {
		r.GET("/events", func(c *gin.Context) {
			hub.ServeWS(c, func() interface{} {
				return newStateResponse(svc.State())
			})
		})
	}

	return r
}

func startCapture(runCtx context.Context, svc CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Start(runCtx)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				conflict := apperrors.NewConflictError("a capture is already in progress", err)
				respondError(c, conflict.StatusCode, "capture rejected", conflict)
				return
			}
			// errorHandler renders it
			_ = c.Error(apperrors.NewCaptureError("capture failed to start", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"run_id": st.RunID,
			"ip":     c.ClientIP(),
		}).Info("Capture requested")

		c.JSON(http.StatusAccepted, newStateResponse(st))
	}
}

func currentState(svc CaptureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, newStateResponse(svc.State()))
	}
}

func currentMetrics(metrics MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, models.PipelineMetrics{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"service": "servicetag-scanner",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
// RequestLogger logs every handled request at debug level
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

// RequestSizeLimiter caps request bodies; 0 disables the limit
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	switch {
	case errors.As(err, new(*apperrors.AppError)):
		return apperrors.GetStatusCode(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
