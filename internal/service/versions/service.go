// Package versions is the single write path for metadata versions.
// Every component that materializes content goes through UpsertCurrent
// so the one-current-version-per-(record,schema) invariant has exactly
// one enforcement point.
package versions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/google/uuid"
)

// Outcome reports what UpsertCurrent did.
type Outcome string

const (
	OutcomeCreated    Outcome = "Created"
	OutcomeSuperseded Outcome = "Superseded"
	OutcomeSkipped    Outcome = "Skipped"
)

// ErrStaleWrite rejects content whose timestamp precedes the current
// version's, preserving monotonic history.
var ErrStaleWrite = errors.New("stale write")

// Provenance carries the origin of a version write.
type Provenance struct {
	CreatorID string
	RequestID string
	// CreatedAt is the source timestamp of the content. Zero means
	// "now".
	CreatedAt time.Time
}

// Service enforces the versioning invariants over a VersionRepository.
type Service struct {
	versions repo.VersionRepository
	locks    keyedMutex
	now      func() time.Time
}

func NewService(versions repo.VersionRepository) (*Service, error) {
	if versions == nil {
		return nil, errors.New("version repository is required")
	}
	return &Service{
		versions: versions,
		now:      time.Now,
	}, nil
}

// UpsertCurrent writes content as the current version for the pair.
// Identical content is skipped; changed content ends the existing row
// and inserts a new current one (supersession is always
// end-and-insert, never overwrite, so history stays immutable).
//
// The read-check-write sequence runs under a per-(record,schema)
// mutex; the partial unique index on the versions table backs the
// invariant across processes, surfacing races as repo.ErrConflict.
func (s *Service) UpsertCurrent(ctx context.Context, recordID, schemaID string, content []byte, prov Provenance) (domain.Version, Outcome, error) {
	if s == nil || s.versions == nil {
		return domain.Version{}, "", errors.New("versioning service not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	schemaID = strings.TrimSpace(schemaID)
	if recordID == "" {
		return domain.Version{}, "", errors.New("record id is required")
	}
	if schemaID == "" {
		return domain.Version{}, "", errors.New("schema id is required")
	}
	if len(content) == 0 {
		return domain.Version{}, "", errors.New("content is required")
	}

	unlock := s.locks.lock(recordID + "\x00" + schemaID)
	defer unlock()

	hash := domain.ContentHash(content)
	createdAt := prov.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC()

	existing, err := s.versions.FindCurrent(ctx, recordID, schemaID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		version := s.newVersion(recordID, schemaID, content, hash, createdAt, prov)
		if err := s.versions.InsertVersion(ctx, version); err != nil {
			return domain.Version{}, "", fmt.Errorf("insert current version: %w", err)
		}
		return version, OutcomeCreated, nil
	case err != nil:
		return domain.Version{}, "", fmt.Errorf("find current version: %w", err)
	}

	if existing.Hash == hash {
		// Benign no-op: a repeated import of unchanged content.
		return existing, OutcomeSkipped, nil
	}
	if createdAt.Before(existing.CreatedAt) {
		return domain.Version{}, "", fmt.Errorf("%w: incoming %s precedes current %s",
			ErrStaleWrite, createdAt.Format(time.RFC3339), existing.CreatedAt.Format(time.RFC3339))
	}

	endedAt := s.now().UTC()
	ended := existing
	ended.Current = false
	ended.EndedAt = &endedAt
	if err := domain.EnsureVersionImmutable(existing, ended); err != nil {
		return domain.Version{}, "", fmt.Errorf("supersede version %s: %w", existing.ID, err)
	}
	version := s.newVersion(recordID, schemaID, content, hash, createdAt, prov)
	if err := s.versions.SupersedeVersion(ctx, existing.ID, endedAt, version); err != nil {
		return domain.Version{}, "", fmt.Errorf("supersede version %s: %w", existing.ID, err)
	}
	return version, OutcomeSuperseded, nil
}

func (s *Service) newVersion(recordID, schemaID string, content []byte, hash string, createdAt time.Time, prov Provenance) domain.Version {
	return domain.Version{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		SchemaID:  schemaID,
		Content:   content,
		Hash:      hash,
		Current:   true,
		CreatedAt: createdAt,
		CreatorID: strings.TrimSpace(prov.CreatorID),
		RequestID: strings.TrimSpace(prov.RequestID),
	}
}

// Current returns the current version for the pair.
func (s *Service) Current(ctx context.Context, recordID, schemaID string) (domain.Version, error) {
	if s == nil || s.versions == nil {
		return domain.Version{}, errors.New("versioning service not initialized")
	}
	return s.versions.FindCurrent(ctx, recordID, schemaID)
}

// AllCurrent returns every current version of the record.
func (s *Service) AllCurrent(ctx context.Context, recordID string) ([]domain.Version, error) {
	if s == nil || s.versions == nil {
		return nil, errors.New("versioning service not initialized")
	}
	return s.versions.FindAllCurrent(ctx, recordID)
}

// keyedMutex serializes writers per (record, schema) key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*lockEntry{}
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
