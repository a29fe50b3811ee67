package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is one schema-typed metadata document attached to a record.
// At most one version per (record, schema) is current; a superseded
// version keeps its content and hash forever.
type Version struct {
	ID        string
	RecordID  string
	SchemaID  string
	Content   []byte
	Hash      string
	Current   bool
	CreatedAt time.Time
	EndedAt   *time.Time
	CreatorID string
	RequestID string
}

// ContentHash is the digest stored on every version. It is a pure
// function of the raw content bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (v Version) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("version id is required")
	}
	if strings.TrimSpace(v.RecordID) == "" {
		return errors.New("record id is required")
	}
	if strings.TrimSpace(v.SchemaID) == "" {
		return errors.New("schema id is required")
	}
	if len(v.Content) == 0 {
		return errors.New("version content is required")
	}
	if v.Hash != ContentHash(v.Content) {
		return errors.New("version hash does not match content")
	}
	if !v.Current && v.EndedAt == nil {
		return errors.New("superseded version must carry ended_at")
	}
	if v.Current && v.EndedAt != nil {
		return errors.New("current version must not carry ended_at")
	}
	return nil
}

// EnsureVersionImmutable enforces that supersession is the only
// mutation a stored version may see: the current flag may flip to
// false and EndedAt may be set, nothing else may change.
func EnsureVersionImmutable(before, after Version) error {
	if before.ID == "" || after.ID == "" {
		return errors.New("version ids are required")
	}
	if before.ID != after.ID {
		return fmt.Errorf("version id changed from %q to %q", before.ID, after.ID)
	}
	if before.RecordID != after.RecordID {
		return errors.New("record id is immutable")
	}
	if before.SchemaID != after.SchemaID {
		return errors.New("schema id is immutable")
	}
	if !bytes.Equal(before.Content, after.Content) {
		return errors.New("content is immutable")
	}
	if before.Hash != after.Hash {
		return errors.New("hash is immutable")
	}
	if !before.CreatedAt.Equal(after.CreatedAt) {
		return errors.New("created_at is immutable")
	}
	if before.RequestID != after.RequestID {
		return errors.New("request id is immutable")
	}
	if !before.Current && after.Current {
		return errors.New("a superseded version cannot become current again")
	}
	return nil
}
