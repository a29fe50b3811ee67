package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
)

type IdentifierStore struct {
	db DB
}

func NewIdentifierStore(db DB) *IdentifierStore {
	if db == nil {
		return nil
	}
	return &IdentifierStore{db: db}
}

const identifierColumns = `identifier_id, identifier_type, identifier_value, status, record_id,
	created_at, modified_at, request_id`

func (s *IdentifierStore) CreateIdentifier(ctx context.Context, identifier domain.Identifier) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("identifier store not initialized")
	}
	if err := identifier.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO identifiers (
			identifier_id,
			identifier_type,
			identifier_value,
			status,
			record_id,
			created_at,
			modified_at,
			request_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		strings.TrimSpace(identifier.ID),
		string(identifier.Type),
		strings.TrimSpace(identifier.Value),
		string(identifier.Status),
		strings.TrimSpace(identifier.RecordID),
		normalizeTime(identifier.CreatedAt),
		normalizeTime(identifier.ModifiedAt),
		nullString(identifier.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert identifier: %w", handleConflict(err))
	}
	return nil
}

func (s *IdentifierStore) GetIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Identifier, error) {
	if s == nil || s.db == nil {
		return domain.Identifier{}, fmt.Errorf("identifier store not initialized")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Identifier{}, fmt.Errorf("identifier value is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+identifierColumns+` FROM identifiers
		 WHERE identifier_type = $1 AND identifier_value = $2`,
		string(idType),
		value,
	)
	return scanIdentifier(row)
}

func (s *IdentifierStore) PrimaryIdentifier(ctx context.Context, recordID string) (domain.Identifier, error) {
	if s == nil || s.db == nil {
		return domain.Identifier{}, fmt.Errorf("identifier store not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return domain.Identifier{}, fmt.Errorf("record id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+identifierColumns+` FROM identifiers
		 WHERE record_id = $1 AND identifier_type = $2
		 ORDER BY created_at ASC
		 LIMIT 1`,
		recordID,
		string(domain.IdentifierIGSN),
	)
	return scanIdentifier(row)
}

func (s *IdentifierStore) UpdateStatus(ctx context.Context, id string, status domain.IdentifierStatus, modifiedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("identifier store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("identifier id is required")
	}

	var current domain.IdentifierStatus
	err := s.db.QueryRowContext(
		ctx,
		`SELECT status FROM identifiers WHERE identifier_id = $1`,
		id,
	).Scan(&current)
	if err != nil {
		return handleNotFound(err)
	}
	if err := domain.ValidateStatusTransition(current, status); err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE identifiers SET status = $2, modified_at = $3 WHERE identifier_id = $1`,
		id,
		string(status),
		normalizeTime(modifiedAt),
	)
	if err != nil {
		return fmt.Errorf("update identifier status: %w", err)
	}
	return nil
}

func scanIdentifier(row rowScanner) (domain.Identifier, error) {
	var (
		identifier domain.Identifier
		requestID  sql.NullString
	)
	err := row.Scan(
		&identifier.ID,
		&identifier.Type,
		&identifier.Value,
		&identifier.Status,
		&identifier.RecordID,
		&identifier.CreatedAt,
		&identifier.ModifiedAt,
		&requestID,
	)
	if err != nil {
		return domain.Identifier{}, handleNotFound(err)
	}
	identifier.RequestID = requestID.String
	return identifier, nil
}
