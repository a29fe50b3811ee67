package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
)

// EventStore is the append-only registration log. Rows are never
// updated or deleted.
type EventStore struct {
	db DB
}

func NewEventStore(db DB) *EventStore {
	if db == nil {
		return nil
	}
	return &EventStore{db: db}
}

func (s *EventStore) AppendEvent(ctx context.Context, event domain.RecordEvent) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("event store not initialized")
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO record_events (
			record_id,
			event_type,
			occurred_at,
			creator_id,
			request_id
		) VALUES ($1,$2,$3,$4,$5)
		RETURNING event_id`,
		strings.TrimSpace(event.RecordID),
		string(event.Type),
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.CreatorID),
		nullString(event.RequestID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert record event: %w", err)
	}
	return id, nil
}

func (s *EventStore) LatestEvent(ctx context.Context, recordID string) (domain.RecordEvent, error) {
	if s == nil || s.db == nil {
		return domain.RecordEvent{}, fmt.Errorf("event store not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return domain.RecordEvent{}, fmt.Errorf("record id is required")
	}
	var (
		event     domain.RecordEvent
		requestID sql.NullString
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT event_id, record_id, event_type, occurred_at, creator_id, request_id
		 FROM record_events
		 WHERE record_id = $1
		 ORDER BY occurred_at DESC, event_id DESC
		 LIMIT 1`,
		recordID,
	).Scan(&event.ID, &event.RecordID, &event.Type, &event.OccurredAt, &event.CreatorID, &requestID)
	if err != nil {
		return domain.RecordEvent{}, handleNotFound(err)
	}
	event.RequestID = requestID.String
	return event, nil
}
