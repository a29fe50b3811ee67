// Package repo declares the persistence contracts of the registry and
// the sentinel errors its callers branch on.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
)

var (
	// ErrNotFound reports a missing record, identifier or version.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write lost to a concurrent writer; the
	// caller may retry the whole unit of work.
	ErrConflict = errors.New("write conflict")
	// ErrForbidden reports an ownership or scope violation surfaced by
	// a capability check.
	ErrForbidden = errors.New("forbidden")
)

// RecordRepository persists records.
type RecordRepository interface {
	CreateRecord(ctx context.Context, record domain.Record) error
	GetRecord(ctx context.Context, id string) (domain.Record, error)
	// FindRecordByIdentifier resolves a record through one of its
	// identifiers.
	FindRecordByIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Record, error)
	// UpdateDerived writes the derivation task's outputs. Nothing else
	// may set these fields.
	UpdateDerived(ctx context.Context, recordID, title string, status domain.RegistryStatus, modifierID string, modifiedAt time.Time) error
}

// IdentifierRepository persists identifiers.
type IdentifierRepository interface {
	CreateIdentifier(ctx context.Context, identifier domain.Identifier) error
	GetIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Identifier, error)
	// PrimaryIdentifier returns the record's IGSN identifier.
	PrimaryIdentifier(ctx context.Context, recordID string) (domain.Identifier, error)
	UpdateStatus(ctx context.Context, id string, status domain.IdentifierStatus, modifiedAt time.Time) error
}

// VersionRepository persists versions. The single-current-version
// invariant is enforced by the versioning service above this interface
// and backed by a partial unique index below it.
type VersionRepository interface {
	InsertVersion(ctx context.Context, version domain.Version) error
	// EndVersion flips a current row to superseded history.
	EndVersion(ctx context.Context, versionID string, endedAt time.Time) error
	// SupersedeVersion ends a current row and inserts its successor
	// atomically. Either both writes land or neither does.
	SupersedeVersion(ctx context.Context, versionID string, endedAt time.Time, next domain.Version) error
	FindCurrent(ctx context.Context, recordID, schemaID string) (domain.Version, error)
	FindAllCurrent(ctx context.Context, recordID string) ([]domain.Version, error)
	// CurrentCount reports how many current rows exist for the pair.
	CurrentCount(ctx context.Context, recordID, schemaID string) (int, error)
}

// EventRepository is the append-only registration log.
type EventRepository interface {
	AppendEvent(ctx context.Context, event domain.RecordEvent) (int64, error)
	LatestEvent(ctx context.Context, recordID string) (domain.RecordEvent, error)
}

// HarvestItem pairs a record with its current version for the
// harvested schema. IGSN is the record's primary identifier value and
// may be empty for records that never received one.
type HarvestItem struct {
	Record  domain.Record
	Version domain.Version
	IGSN    string
}

// HarvestFilter selects current versions for harvesting. From/Until
// are inclusive; AfterModified/AfterRecordID are the keyset cursor of
// the previous page.
type HarvestFilter struct {
	SchemaID      string
	From          *time.Time
	Until         *time.Time
	AfterModified time.Time
	AfterRecordID string
	Limit         int
}

// HarvestRepository is the read-only selection surface of the
// harvesting responder.
type HarvestRepository interface {
	HarvestPage(ctx context.Context, filter HarvestFilter) ([]HarvestItem, error)
	HarvestCount(ctx context.Context, filter HarvestFilter) (int, error)
}
