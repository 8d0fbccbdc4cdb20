package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"go-servicetag-scanner/pkg/validation"
)

// DefaultRecognitionURL is the hosted service tag detection endpoint.
const DefaultRecognitionURL = "https://service-tag-detection-4.onrender.com/upload"

type Config struct {
	Host           string        `validate:"required"`
	Port           string        `validate:"required,numeric"`
	RequestTimeout time.Duration `validate:"gt=0"`

	RecognitionURL   string        `validate:"required"`
	UploadTimeout    time.Duration `validate:"gt=0"`
	MaxResponseBytes int64         `validate:"gt=0"`

	CameraType   string `validate:"oneof=webcam directory"`
	CameraDevice int    `validate:"gte=0"`
	CaptureDir   string `validate:"required"`
	InboxDir     string `validate:"required_if=CameraType directory"`

	AzureAccountName string `validate:"required_with=AzureAccountKey"`
	AzureAccountKey  string `validate:"required_with=AzureAccountName"`

	TagServerPort  string `validate:"required,numeric"`
	OCRLanguage    string `validate:"required"`
	MaxUploadBytes int64  `validate:"gt=0"`

	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
	LogFile   string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func (c *Config) TagServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.TagServerPort))
}

// AzureEnabled reports whether azblob:// image references can be resolved.
func (c *Config) AzureEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// LoadFromEnv reads an optional .env file and then the process environment.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             strings.TrimSpace(getEnvOrDefault("PORT", "8080")),
		RequestTimeout:   parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		RecognitionURL:   getEnvOrDefault("RECOGNITION_URL", DefaultRecognitionURL),
		UploadTimeout:    parseDurationOrDefault("UPLOAD_TIMEOUT", 60*time.Second),
		MaxResponseBytes: parseIntOrDefault("MAX_RESPONSE_BYTES", 1024*1024), // 1MB
		CameraType:       strings.ToLower(getEnvOrDefault("CAMERA_TYPE", "webcam")),
		CameraDevice:     int(parseIntOrDefault("CAMERA_DEVICE", 0)),
		CaptureDir:       getEnvOrDefault("CAPTURE_DIR", filepath.Join(os.TempDir(), "servicetag-captures")),
		InboxDir:         os.Getenv("INBOX_DIR"),
		AzureAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:  os.Getenv("AZURE_STORAGE_KEY"),
		TagServerPort:    strings.TrimSpace(getEnvOrDefault("TAGSERVER_PORT", "5000")),
		OCRLanguage:      getEnvOrDefault("OCR_LANGUAGE", "eng"),
		MaxUploadBytes:   parseIntOrDefault("MAX_UPLOAD_BYTES", 10*1024*1024), // 10MB
		LogLevel:         strings.ToLower(os.Getenv("LOG_LEVEL")),
		LogFormat:        strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
		LogFile:          os.Getenv("LOG_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the recognition endpoint URL.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if err := validation.NewURLValidator().ValidateURL(c.RecognitionURL); err != nil {
		return fmt.Errorf("invalid RECOGNITION_URL %q: %w", c.RecognitionURL, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
