package domain

import (
	"errors"
	"strings"
	"time"
)

// EventType is a registration lifecycle event recorded against a
// record. The values mirror the logDate event types of the descriptive
// metadata schema.
type EventType string

const (
	EventRegistered EventType = "registered"
	EventUpdated    EventType = "updated"
	EventDestroyed  EventType = "destroyed"
	EventDeprecated EventType = "deprecated"
)

// Valid reports whether t is one of the known event types.
// RegistryStatus maps an event type onto the registration status it
// implies. Unknown types map to StatusUnknown.
func (t EventType) RegistryStatus() RegistryStatus {
	switch t {
	case EventRegistered, EventUpdated:
		return StatusRegistered
	case EventDestroyed:
		return StatusDestroyed
	case EventDeprecated:
		return StatusDeprecated
	default:
		return StatusUnknown
	}
}

func (t EventType) Valid() bool {
	switch t {
	case EventRegistered, EventUpdated, EventDestroyed, EventDeprecated:
		return true
	}
	return false
}

// RecordEvent is one row of the append-only registration log.
type RecordEvent struct {
	ID         int64
	RecordID   string
	Type       EventType
	OccurredAt time.Time
	CreatorID  string
	RequestID  string
}

func (e RecordEvent) Validate() error {
	if strings.TrimSpace(e.RecordID) == "" {
		return errors.New("record id is required")
	}
	if !e.Type.Valid() {
		return errors.New("unknown event type")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at is required")
	}
	return nil
}
