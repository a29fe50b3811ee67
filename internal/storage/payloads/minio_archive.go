package payloads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
)

const maxPayloadBytes = 64 << 20 // 64 MiB

type MinioArchive struct {
	client *minio.Client
	bucket string
}

func NewMinioArchive(client *minio.Client, bucket string) (*MinioArchive, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &MinioArchive{client: client, bucket: bucket}, nil
}

func (a *MinioArchive) Store(ctx context.Context, requestID string, payload []byte, contentType string) (string, error) {
	if a == nil || a.client == nil {
		return "", errors.New("payload archive not initialized")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return "", errors.New("request id is required")
	}
	if len(payload) == 0 {
		return "", errors.New("payload is required")
	}
	key := fmt.Sprintf("imports/%s", requestID)
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), opts)
	if err != nil {
		return "", fmt.Errorf("archive payload: %w", err)
	}
	return key, nil
}

func (a *MinioArchive) Load(ctx context.Context, key string) ([]byte, error) {
	if a == nil || a.client == nil {
		return nil, errors.New("payload archive not initialized")
	}
	obj, err := a.client.GetObject(ctx, a.bucket, strings.TrimSpace(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	defer obj.Close()
	data, err := limitedReadAll(obj, maxPayloadBytes)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
