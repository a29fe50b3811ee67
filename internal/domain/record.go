package domain

import (
	"errors"
	"strings"
	"time"
)

// RecordStatus is the editorial lifecycle state of a record.
type RecordStatus string

const (
	RecordDraft     RecordStatus = "DRAFT"
	RecordPublished RecordStatus = "PUBLISHED"
)

// RegistryStatus is the derived registration state of a record. It is
// written only by the derivation task, never accepted as input.
type RegistryStatus string

const (
	StatusReserved   RegistryStatus = "Reserved"
	StatusRegistered RegistryStatus = "Registered"
	StatusDestroyed  RegistryStatus = "Destroyed"
	StatusDeprecated RegistryStatus = "Deprecated"
	StatusUnknown    RegistryStatus = "Unknown"
)

// OwnerType scopes record ownership.
type OwnerType string

const (
	OwnerUser       OwnerType = "User"
	OwnerDataCenter OwnerType = "DataCenter"
)

// Record is a registered sample and the owner of its identifiers and
// metadata versions. Title and RegistryStatus are derived fields.
type Record struct {
	ID             string
	Status         RecordStatus
	Visible        bool
	Title          string
	RegistryStatus RegistryStatus
	OwnerType      OwnerType
	OwnerID        string
	AllocationID   string
	CreatorID      string
	ModifierID     string
	CreatedAt      time.Time
	ModifiedAt     time.Time
	RequestID      string
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	switch r.Status {
	case RecordDraft, RecordPublished:
	default:
		return errors.New("record status must be DRAFT or PUBLISHED")
	}
	switch r.OwnerType {
	case OwnerUser, OwnerDataCenter:
	default:
		return errors.New("owner type must be User or DataCenter")
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if strings.TrimSpace(r.AllocationID) == "" {
		return errors.New("allocation id is required")
	}
	return nil
}
