package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// IdentifierType names the identifier scheme.
type IdentifierType string

const IdentifierIGSN IdentifierType = "IGSN"

// IdentifierStatus tracks registration of the external identifier.
// The only legal transition is RESERVED -> ACCESSIBLE.
type IdentifierStatus string

const (
	IdentifierReserved   IdentifierStatus = "RESERVED"
	IdentifierAccessible IdentifierStatus = "ACCESSIBLE"
)

// Identifier is the externally visible persistent identifier of a
// record. (Type, Value) is globally unique; RecordID is immutable.
type Identifier struct {
	ID         string
	Type       IdentifierType
	Value      string
	Status     IdentifierStatus
	RecordID   string
	CreatedAt  time.Time
	ModifiedAt time.Time
	RequestID  string
}

func (i Identifier) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("identifier id is required")
	}
	if strings.TrimSpace(string(i.Type)) == "" {
		return errors.New("identifier type is required")
	}
	if strings.TrimSpace(i.Value) == "" {
		return errors.New("identifier value is required")
	}
	switch i.Status {
	case IdentifierReserved, IdentifierAccessible:
	default:
		return errors.New("identifier status must be RESERVED or ACCESSIBLE")
	}
	if strings.TrimSpace(i.RecordID) == "" {
		return errors.New("record id is required")
	}
	return nil
}

// ValidateStatusTransition rejects anything but RESERVED -> ACCESSIBLE
// (or a no-op).
func ValidateStatusTransition(from, to IdentifierStatus) error {
	if from == to {
		return nil
	}
	if from == IdentifierReserved && to == IdentifierAccessible {
		return nil
	}
	return fmt.Errorf("identifier status cannot move from %s to %s", from, to)
}
