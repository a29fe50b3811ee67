package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
)

type VersionStore struct {
	db DB
}

func NewVersionStore(db DB) *VersionStore {
	if db == nil {
		return nil
	}
	return &VersionStore{db: db}
}

const versionColumns = `version_id, record_id, schema_id, content, hash, current, created_at,
	ended_at, creator_id, request_id`

func (s *VersionStore) InsertVersion(ctx context.Context, version domain.Version) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("version store not initialized")
	}
	if err := version.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO versions (
			version_id,
			record_id,
			schema_id,
			content,
			hash,
			current,
			created_at,
			ended_at,
			creator_id,
			request_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		strings.TrimSpace(version.ID),
		strings.TrimSpace(version.RecordID),
		strings.TrimSpace(version.SchemaID),
		version.Content,
		strings.TrimSpace(version.Hash),
		version.Current,
		normalizeTime(version.CreatedAt),
		nullTime(version.EndedAt),
		strings.TrimSpace(version.CreatorID),
		nullString(version.RequestID),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", handleConflict(err))
	}
	return nil
}

func (s *VersionStore) EndVersion(ctx context.Context, versionID string, endedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("version store not initialized")
	}
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return fmt.Errorf("version id is required")
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE versions SET current = FALSE, ended_at = $2 WHERE version_id = $1 AND current`,
		versionID,
		normalizeTime(endedAt),
	)
	if err != nil {
		return fmt.Errorf("end version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end version: %w", err)
	}
	if affected == 0 {
		return repo.ErrConflict
	}
	return nil
}

// SupersedeVersion runs the end-and-insert pair in one transaction so
// a failed insert cannot leave the pair with no current row. When the
// store is already scoped to a caller-managed transaction the two
// statements run on it directly.
func (s *VersionStore) SupersedeVersion(ctx context.Context, versionID string, endedAt time.Time, next domain.Version) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("version store not initialized")
	}
	db, ok := s.db.(*sql.DB)
	if !ok {
		if err := s.EndVersion(ctx, versionID, endedAt); err != nil {
			return err
		}
		return s.InsertVersion(ctx, next)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin supersede: %w", err)
	}
	scoped := &VersionStore{db: tx}
	if err := scoped.EndVersion(ctx, versionID, endedAt); err != nil {
		tx.Rollback()
		return err
	}
	if err := scoped.InsertVersion(ctx, next); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit supersede: %w", err)
	}
	return nil
}

func (s *VersionStore) FindCurrent(ctx context.Context, recordID, schemaID string) (domain.Version, error) {
	if s == nil || s.db == nil {
		return domain.Version{}, fmt.Errorf("version store not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	schemaID = strings.TrimSpace(schemaID)
	if recordID == "" || schemaID == "" {
		return domain.Version{}, fmt.Errorf("record id and schema id are required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE record_id = $1 AND schema_id = $2 AND current`,
		recordID,
		schemaID,
	)
	return scanVersion(row)
}

func (s *VersionStore) FindAllCurrent(ctx context.Context, recordID string) ([]domain.Version, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("version store not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, fmt.Errorf("record id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+versionColumns+` FROM versions
		 WHERE record_id = $1 AND current
		 ORDER BY schema_id ASC`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("list current versions: %w", err)
	}
	defer rows.Close()

	versions := make([]domain.Version, 0)
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list current versions: %w", err)
	}
	return versions, nil
}

func (s *VersionStore) CurrentCount(ctx context.Context, recordID, schemaID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("version store not initialized")
	}
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM versions WHERE record_id = $1 AND schema_id = $2 AND current`,
		strings.TrimSpace(recordID),
		strings.TrimSpace(schemaID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current versions: %w", err)
	}
	return count, nil
}

func (s *VersionStore) HarvestPage(ctx context.Context, filter repo.HarvestFilter) ([]repo.HarvestItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("version store not initialized")
	}
	query, args, err := buildHarvestQuery(filter, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("harvest page: %w", err)
	}
	defer rows.Close()

	items := make([]repo.HarvestItem, 0, filter.Limit)
	for rows.Next() {
		var (
			item           repo.HarvestItem
			title          sql.NullString
			registryStatus sql.NullString
			modifierID     sql.NullString
			recRequestID   sql.NullString
			endedAt        sql.NullTime
			verRequestID   sql.NullString
			igsn           sql.NullString
		)
		err := rows.Scan(
			&item.Record.ID,
			&item.Record.Status,
			&item.Record.Visible,
			&title,
			&registryStatus,
			&item.Record.OwnerType,
			&item.Record.OwnerID,
			&item.Record.AllocationID,
			&item.Record.CreatorID,
			&modifierID,
			&item.Record.CreatedAt,
			&item.Record.ModifiedAt,
			&recRequestID,
			&item.Version.ID,
			&item.Version.RecordID,
			&item.Version.SchemaID,
			&item.Version.Content,
			&item.Version.Hash,
			&item.Version.Current,
			&item.Version.CreatedAt,
			&endedAt,
			&item.Version.CreatorID,
			&verRequestID,
			&igsn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan harvest item: %w", err)
		}
		item.Record.Title = title.String
		item.Record.RegistryStatus = domain.RegistryStatus(registryStatus.String)
		item.Record.ModifierID = modifierID.String
		item.Record.RequestID = recRequestID.String
		if endedAt.Valid {
			t := endedAt.Time
			item.Version.EndedAt = &t
		}
		item.Version.RequestID = verRequestID.String
		item.IGSN = igsn.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("harvest page: %w", err)
	}
	return items, nil
}

func (s *VersionStore) HarvestCount(ctx context.Context, filter repo.HarvestFilter) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("version store not initialized")
	}
	query, args, err := buildHarvestQuery(filter, true)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("harvest count: %w", err)
	}
	return count, nil
}

// buildHarvestQuery selects published visible records joined to their
// current version for the schema, windowed on the version's creation
// time and keyset-paged on (created_at, record_id).
func buildHarvestQuery(filter repo.HarvestFilter, count bool) (string, []any, error) {
	schemaID := strings.TrimSpace(filter.SchemaID)
	if schemaID == "" {
		return "", nil, fmt.Errorf("schema id is required")
	}
	args := []any{schemaID}
	clauses := []string{
		"v.schema_id = $1",
		"v.current",
		"r.visible",
		fmt.Sprintf("r.status = '%s'", domain.RecordPublished),
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		clauses = append(clauses, fmt.Sprintf("v.created_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, filter.Until.UTC())
		clauses = append(clauses, fmt.Sprintf("v.created_at <= $%d", len(args)))
	}
	if !filter.AfterModified.IsZero() {
		args = append(args, filter.AfterModified.UTC())
		timeArg := len(args)
		args = append(args, strings.TrimSpace(filter.AfterRecordID))
		idArg := len(args)
		clauses = append(clauses, fmt.Sprintf("(v.created_at, r.record_id) > ($%d, $%d)", timeArg, idArg))
	}

	var query string
	if count {
		query = `SELECT COUNT(*) FROM versions v JOIN records r ON r.record_id = v.record_id`
	} else {
		query = `SELECT r.record_id, r.status, r.visible, r.title, r.registry_status, r.owner_type, r.owner_id,
			r.allocation_id, r.creator_id, r.modifier_id, r.created_at, r.modified_at, r.request_id,
			v.version_id, v.record_id, v.schema_id, v.content, v.hash, v.current, v.created_at,
			v.ended_at, v.creator_id, v.request_id,
			(SELECT i.identifier_value FROM identifiers i
			 WHERE i.record_id = r.record_id AND i.identifier_type = 'IGSN'
			 ORDER BY i.created_at ASC LIMIT 1)
		 FROM versions v JOIN records r ON r.record_id = v.record_id`
	}
	query += " WHERE " + strings.Join(clauses, " AND ")
	if !count {
		query += " ORDER BY v.created_at ASC, r.record_id ASC"
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
	}
	return query, args, nil
}

func scanVersion(row rowScanner) (domain.Version, error) {
	var (
		version   domain.Version
		endedAt   sql.NullTime
		requestID sql.NullString
	)
	err := row.Scan(
		&version.ID,
		&version.RecordID,
		&version.SchemaID,
		&version.Content,
		&version.Hash,
		&version.Current,
		&version.CreatedAt,
		&endedAt,
		&version.CreatorID,
		&requestID,
	)
	if err != nil {
		return domain.Version{}, handleNotFound(err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		version.EndedAt = &t
	}
	version.RequestID = requestID.String
	return version, nil
}
