// Package payloads archives the raw import payloads that feed the
// versioning pipeline, keyed by originating request id, so any derived
// version can be traced back to the bytes that produced it.
package payloads

import (
	"context"
	"io"
)

// Archive stores and retrieves raw import payloads.
type Archive interface {
	Store(ctx context.Context, requestID string, payload []byte, contentType string) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
}

// limitedReadAll guards Load against unexpectedly large objects.
func limitedReadAll(r io.Reader, max int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, max))
}
