package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds blob store configuration
type Config struct {
	Backend   string
	LocalRoot string

	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Backend:         strings.ToLower(env.GetEnv("STORAGE_BACKEND", BackendLocal)),
		LocalRoot:       env.GetEnv("STORAGE_LOCAL_ROOT", "./uploads"),
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.LocalRoot == "" {
			return errors.New("STORAGE_LOCAL_ROOT is required for the local backend")
		}
	case BackendS3:
		if c.AccessKeyID == "" {
			return errors.New("S3_ACCESS_KEY_ID is required for the s3 backend")
		}
		if c.SecretAccessKey == "" {
			return errors.New("S3_SECRET_ACCESS_KEY is required for the s3 backend")
		}
		if c.BucketName == "" {
			return errors.New("S3_BUCKET_NAME is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Backend)
	}
	return nil
}

// ObjectKey generates a standardized object key for a generated document
func ObjectKey(prefix, uuid, ext string, at time.Time) string {
	// Format: appeals/YYYY/MM/UUID.ext
	return fmt.Sprintf("%s/%04d/%02d/%s%s", prefix, at.Year(), int(at.Month()), uuid, ext)
}
