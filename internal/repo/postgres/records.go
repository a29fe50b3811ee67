package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
)

type RecordStore struct {
	db DB
}

func NewRecordStore(db DB) *RecordStore {
	if db == nil {
		return nil
	}
	return &RecordStore{db: db}
}

const recordColumns = `record_id, status, visible, title, registry_status, owner_type, owner_id,
	allocation_id, creator_id, modifier_id, created_at, modified_at, request_id`

func (s *RecordStore) CreateRecord(ctx context.Context, record domain.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("record store not initialized")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	createdAt := normalizeTime(record.CreatedAt)
	modifiedAt := normalizeTime(record.ModifiedAt)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO records (
			record_id,
			status,
			visible,
			title,
			registry_status,
			owner_type,
			owner_id,
			allocation_id,
			creator_id,
			modifier_id,
			created_at,
			modified_at,
			request_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		strings.TrimSpace(record.ID),
		string(record.Status),
		record.Visible,
		nullString(record.Title),
		nullString(string(record.RegistryStatus)),
		string(record.OwnerType),
		strings.TrimSpace(record.OwnerID),
		strings.TrimSpace(record.AllocationID),
		strings.TrimSpace(record.CreatorID),
		nullString(record.ModifierID),
		createdAt,
		modifiedAt,
		nullString(record.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", handleConflict(err))
	}
	return nil
}

func (s *RecordStore) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	if s == nil || s.db == nil {
		return domain.Record{}, fmt.Errorf("record store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Record{}, fmt.Errorf("record id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM records WHERE record_id = $1`,
		id,
	)
	return scanRecord(row)
}

func (s *RecordStore) FindRecordByIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Record, error) {
	if s == nil || s.db == nil {
		return domain.Record{}, fmt.Errorf("record store not initialized")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Record{}, fmt.Errorf("identifier value is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT r.record_id, r.status, r.visible, r.title, r.registry_status, r.owner_type, r.owner_id,
			r.allocation_id, r.creator_id, r.modifier_id, r.created_at, r.modified_at, r.request_id
		 FROM records r
		 JOIN identifiers i ON i.record_id = r.record_id
		 WHERE i.identifier_type = $1 AND i.identifier_value = $2`,
		string(idType),
		value,
	)
	return scanRecord(row)
}

func (s *RecordStore) UpdateDerived(ctx context.Context, recordID, title string, status domain.RegistryStatus, modifierID string, modifiedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("record store not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return fmt.Errorf("record id is required")
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE records
		 SET title = $2, registry_status = $3, modifier_id = $4, modified_at = $5
		 WHERE record_id = $1`,
		recordID,
		nullString(title),
		nullString(string(status)),
		nullString(modifierID),
		normalizeTime(modifiedAt),
	)
	if err != nil {
		return fmt.Errorf("update derived fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update derived fields: %w", err)
	}
	if affected == 0 {
		return handleNotFound(sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record         domain.Record
		title          sql.NullString
		registryStatus sql.NullString
		modifierID     sql.NullString
		requestID      sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.Status,
		&record.Visible,
		&title,
		&registryStatus,
		&record.OwnerType,
		&record.OwnerID,
		&record.AllocationID,
		&record.CreatorID,
		&modifierID,
		&record.CreatedAt,
		&record.ModifiedAt,
		&requestID,
	)
	if err != nil {
		return domain.Record{}, handleNotFound(err)
	}
	record.Title = title.String
	record.RegistryStatus = domain.RegistryStatus(registryStatus.String)
	record.ModifierID = modifierID.String
	record.RequestID = requestID.String
	return record, nil
}
