// Package derive recomputes a record's title and registration status
// from its canonical version. The task is idempotent: re-running it
// over unchanged content writes the same fields again.
package derive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
)

type Task struct {
	logger      *slog.Logger
	schemas     *schema.Registry
	providers   *metadata.Registry
	versions    *versions.Service
	records     repo.RecordRepository
	identifiers repo.IdentifierRepository
	events      repo.EventRepository
	now         func() time.Time
}

func NewTask(
	logger *slog.Logger,
	schemas *schema.Registry,
	providers *metadata.Registry,
	versionSvc *versions.Service,
	records repo.RecordRepository,
	identifiers repo.IdentifierRepository,
	events repo.EventRepository,
) (*Task, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if schemas == nil {
		return nil, errors.New("schema registry is required")
	}
	if providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if versionSvc == nil {
		return nil, errors.New("versioning service is required")
	}
	if records == nil {
		return nil, errors.New("record repository is required")
	}
	if identifiers == nil {
		return nil, errors.New("identifier repository is required")
	}
	if events == nil {
		return nil, errors.New("event repository is required")
	}
	return &Task{
		logger:      logger,
		schemas:     schemas,
		providers:   providers,
		versions:    versionSvc,
		records:     records,
		identifiers: identifiers,
		events:      events,
		now:         time.Now,
	}, nil
}

// Run derives title and registration status for the record and writes
// them back. A record without a canonical version is not an error; the
// task logs and returns so callers never fail on partially imported
// records.
func (t *Task) Run(ctx context.Context, recordID, modifierID string) error {
	if t == nil {
		return errors.New("derivation task not initialized")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return errors.New("record id is required")
	}

	canonical := t.schemas.Canonical()
	version, err := t.versions.Current(ctx, recordID, canonical.ID)
	if errors.Is(err, repo.ErrNotFound) {
		t.logger.Debug("no canonical version yet, skipping derivation", "record_id", recordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load canonical version: %w", err)
	}

	primary, err := t.identifiers.PrimaryIdentifier(ctx, recordID)
	if errors.Is(err, repo.ErrNotFound) {
		primary = domain.Identifier{}
	} else if err != nil {
		return fmt.Errorf("load primary identifier: %w", err)
	}

	title := ""
	titleProvider, err := t.providers.Title(canonical.ID)
	if err != nil {
		return fmt.Errorf("title provider: %w", err)
	}
	title, err = titleProvider.Title(version.Content)
	if err != nil {
		t.logger.Warn("title extraction failed", "record_id", recordID, "error", err)
		title = ""
	}

	status := domain.StatusUnknown
	statusProvider, err := t.providers.Status(canonical.ID)
	if err != nil {
		return fmt.Errorf("status provider: %w", err)
	}
	status = statusProvider.Status(primary, version.Content)
	if status == domain.StatusUnknown && primary.Status != domain.IdentifierReserved {
		// Documents without logDates fall back to the registration
		// event log.
		event, err := t.events.LatestEvent(ctx, recordID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return fmt.Errorf("load latest event: %w", err)
		default:
			status = event.Type.RegistryStatus()
		}
	}

	if err := t.records.UpdateDerived(ctx, recordID, title, status, strings.TrimSpace(modifierID), t.now().UTC()); err != nil {
		return fmt.Errorf("write derived fields: %w", err)
	}
	return nil
}
