package objectstore

import (
	"errors"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/env"
)

type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	BucketPayloads string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("IGSN_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:       env.String("IGSN_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:      env.String("IGSN_MINIO_ACCESS_KEY", "igsn"),
		SecretKey:      env.String("IGSN_MINIO_SECRET_KEY", "igsnminio"),
		Region:         env.String("IGSN_MINIO_REGION", "us-east-1"),
		UseSSL:         useSSL,
		BucketPayloads: env.String("IGSN_MINIO_BUCKET_PAYLOADS", "igsn-payloads"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.BucketPayloads) == "" {
		return errors.New("payloads bucket is required")
	}
	return nil
}
