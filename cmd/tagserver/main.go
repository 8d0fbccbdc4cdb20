package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-servicetag-scanner/internal/config"
	"go-servicetag-scanner/internal/detector"
	"go-servicetag-scanner/internal/logger"
	"go-servicetag-scanner/internal/tagserver"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	logger.Configure(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := detector.DefaultOptions().WithLanguage(cfg.OCRLanguage)
	det := detector.NewDefault(opts)
	defer det.Close()

	server := &http.Server{
		Addr:         cfg.TagServerAddress(),
		Handler:      tagserver.NewHandler(det, cfg.MaxUploadBytes),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: 2 * cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":          cfg.TagServerAddress(),
			"ocr_language":     opts.Language,
			"max_upload_bytes": cfg.MaxUploadBytes,
		}).Info("Starting service tag detector")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
