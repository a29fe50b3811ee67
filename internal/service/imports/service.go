// Package imports turns an incoming metadata payload into stored
// canonical versions and their derived schema representations. Each
// fragment of a batch payload is an independent unit of work; a
// failure in one never aborts the others.
package imports

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
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/derive"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/storage/payloads"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/transform"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 5
	defaultRetries     = 3
)

// OwnershipCheck decides whether the request may touch an existing
// record. A denial is reported as repo.ErrForbidden.
type OwnershipCheck func(ctx context.Context, record domain.Record, req Request) error

// Request is one import payload plus its provenance.
type Request struct {
	Payload      []byte
	SchemaID     string
	OwnerType    domain.OwnerType
	OwnerID      string
	AllocationID string
	CreatorID    string
	RequestID    string
	// EventType overrides the registration event recorded for each
	// fragment. Empty means registered for new records and updated for
	// existing ones.
	EventType domain.EventType
}

// FragmentOutcome reports what happened to one fragment.
type FragmentOutcome struct {
	Index           int
	IdentifierValue string
	RecordID        string
	Outcome         versions.Outcome
	Error           string
}

// Result summarizes a batch import.
type Result struct {
	RequestID string
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Fragments []FragmentOutcome
}

// Service runs the import pipeline.
type Service struct {
	logger      *slog.Logger
	schemas     *schema.Registry
	providers   *metadata.Registry
	transforms  *transform.Engine
	versionSvc  *versions.Service
	records     repo.RecordRepository
	identifiers repo.IdentifierRepository
	events      repo.EventRepository
	deriveTask  *derive.Task
	archive     payloads.Archive
	ownership   OwnershipCheck

	registrantName string
	concurrency    int
	retries        int
	now            func() time.Time
}

// Options tunes the pipeline. Zero values fall back to defaults; a nil
// Archive disables payload archiving and a nil Ownership allows every
// caller.
type Options struct {
	Archive        payloads.Archive
	Ownership      OwnershipCheck
	RegistrantName string
	Concurrency    int
	Retries        int
}

func NewService(
	logger *slog.Logger,
	schemas *schema.Registry,
	providers *metadata.Registry,
	transforms *transform.Engine,
	versionSvc *versions.Service,
	records repo.RecordRepository,
	identifiers repo.IdentifierRepository,
	events repo.EventRepository,
	deriveTask *derive.Task,
	opts Options,
) (*Service, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if schemas == nil {
		return nil, errors.New("schema registry is required")
	}
	if providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if transforms == nil {
		return nil, errors.New("transform engine is required")
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
	if deriveTask == nil {
		return nil, errors.New("derivation task is required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	return &Service{
		logger:         logger,
		schemas:        schemas,
		providers:      providers,
		transforms:     transforms,
		versionSvc:     versionSvc,
		records:        records,
		identifiers:    identifiers,
		events:         events,
		deriveTask:     deriveTask,
		archive:        opts.Archive,
		ownership:      opts.Ownership,
		registrantName: strings.TrimSpace(opts.RegistrantName),
		concurrency:    concurrency,
		retries:        retries,
		now:            time.Now,
	}, nil
}

// Run imports a payload. The returned error covers request-level
// problems only; per-fragment failures are reported in the result.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if s == nil {
		return Result{}, errors.New("import service not initialized")
	}
	if len(req.Payload) == 0 {
		return Result{}, errors.New("payload is required")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return Result{}, errors.New("owner id is required")
	}
	if strings.TrimSpace(req.AllocationID) == "" {
		return Result{}, errors.New("allocation id is required")
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return Result{}, errors.New("request id is required")
	}

	schemaID := strings.TrimSpace(req.SchemaID)
	canonical := s.schemas.Canonical()
	if schemaID == "" {
		schemaID = canonical.ID
	}
	desc, err := s.schemas.Resolve(schemaID)
	if err != nil {
		return Result{}, err
	}
	if desc.ID != canonical.ID {
		return Result{}, fmt.Errorf("imports accept the canonical schema %s, got %s", canonical.ID, desc.ID)
	}
	if err := schema.ValidateContent(desc, req.Payload); err != nil {
		return Result{}, err
	}

	if s.archive != nil {
		if _, err := s.archive.Store(ctx, req.RequestID, req.Payload, "application/xml"); err != nil {
			s.logger.Warn("payload archive failed", "request_id", req.RequestID, "error", err)
		}
	}

	fragments, err := s.providers.Fragment(desc.ID)
	if err != nil {
		return Result{}, err
	}
	count, err := fragments.FragmentCount(req.Payload)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]FragmentOutcome, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			content, err := fragments.Fragment(req.Payload, i)
			if err != nil {
				outcomes[i] = FragmentOutcome{Index: i, Error: err.Error()}
				s.logger.Error("fragment extraction failed", "request_id", req.RequestID, "fragment", i, "error", err)
				return nil
			}
			outcomes[i] = s.processWithRetry(gctx, desc, content, i, req)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{RequestID: req.RequestID, Total: count, Fragments: outcomes}
	for _, outcome := range outcomes {
		switch {
		case outcome.Error != "":
			result.Failed++
		case outcome.Outcome == versions.OutcomeSkipped:
			result.Skipped++
		default:
			result.Succeeded++
		}
	}
	return result, nil
}

// processWithRetry retries a unit of work on write conflicts and
// abandons it once the budget is spent.
func (s *Service) processWithRetry(ctx context.Context, desc schema.Descriptor, content []byte, index int, req Request) FragmentOutcome {
	var outcome FragmentOutcome
	for attempt := 1; attempt <= s.retries; attempt++ {
		var err error
		outcome, err = s.processFragment(ctx, desc, content, index, req)
		if err == nil {
			return outcome
		}
		if !errors.Is(err, repo.ErrConflict) {
			s.logger.Error("fragment import failed",
				"request_id", req.RequestID, "fragment", index,
				"identifier", outcome.IdentifierValue, "error", err)
			outcome.Error = err.Error()
			return outcome
		}
		s.logger.Warn("write conflict, retrying fragment",
			"request_id", req.RequestID, "fragment", index, "attempt", attempt)
	}
	s.logger.Error("fragment abandoned after retries",
		"request_id", req.RequestID, "fragment", index, "attempts", s.retries)
	outcome.Error = repo.ErrConflict.Error()
	return outcome
}

func (s *Service) processFragment(ctx context.Context, desc schema.Descriptor, content []byte, index int, req Request) (FragmentOutcome, error) {
	outcome := FragmentOutcome{Index: index}

	identifierProvider, err := s.providers.Identifier(desc.ID)
	if err != nil {
		return outcome, err
	}
	value, err := identifierProvider.IdentifierValue(content)
	if err != nil {
		return outcome, err
	}
	outcome.IdentifierValue = value

	record, created, err := s.findOrCreateRecord(ctx, desc, content, value, req)
	if err != nil {
		return outcome, err
	}
	outcome.RecordID = record.ID

	prov := versions.Provenance{CreatorID: req.CreatorID, RequestID: req.RequestID}
	version, versionOutcome, err := s.versionSvc.UpsertCurrent(ctx, record.ID, desc.ID, content, prov)
	if err != nil {
		return outcome, err
	}
	outcome.Outcome = versionOutcome
	if versionOutcome == versions.OutcomeSkipped {
		// Unchanged content: everything downstream is already
		// materialized.
		return outcome, nil
	}

	eventType := req.EventType
	if eventType == "" {
		eventType = domain.EventUpdated
		if created {
			eventType = domain.EventRegistered
		}
	}
	if _, err := s.events.AppendEvent(ctx, domain.RecordEvent{
		RecordID:   record.ID,
		Type:       eventType,
		OccurredAt: s.now().UTC(),
		CreatorID:  req.CreatorID,
		RequestID:  req.RequestID,
	}); err != nil {
		return outcome, fmt.Errorf("append event: %w", err)
	}
	if eventType == domain.EventRegistered || eventType == domain.EventUpdated {
		if err := s.markAccessible(ctx, record.ID); err != nil {
			return outcome, err
		}
	}

	if err := s.deriveTask.Run(ctx, record.ID, req.CreatorID); err != nil {
		return outcome, fmt.Errorf("derive record fields: %w", err)
	}

	s.fanOutTransforms(ctx, desc, record, version, eventType, req)
	return outcome, nil
}

func (s *Service) findOrCreateRecord(ctx context.Context, desc schema.Descriptor, content []byte, value string, req Request) (domain.Record, bool, error) {
	identifier, err := s.identifiers.GetIdentifier(ctx, domain.IdentifierIGSN, value)
	if err == nil {
		record, err := s.records.GetRecord(ctx, identifier.RecordID)
		if err != nil {
			return domain.Record{}, false, fmt.Errorf("load record %s: %w", identifier.RecordID, err)
		}
		if s.ownership != nil {
			if err := s.ownership(ctx, record, req); err != nil {
				return domain.Record{}, false, err
			}
		}
		return record, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Record{}, false, fmt.Errorf("look up identifier %s: %w", value, err)
	}

	visibility, err := s.providers.Visibility(desc.ID)
	if err != nil {
		return domain.Record{}, false, err
	}
	visible, err := visibility.Visible(content)
	if err != nil {
		visible = true
	}

	now := s.now().UTC()
	record := domain.Record{
		ID:           uuid.NewString(),
		Status:       domain.RecordPublished,
		Visible:      visible,
		OwnerType:    req.OwnerType,
		OwnerID:      strings.TrimSpace(req.OwnerID),
		AllocationID: strings.TrimSpace(req.AllocationID),
		CreatorID:    strings.TrimSpace(req.CreatorID),
		CreatedAt:    now,
		ModifiedAt:   now,
		RequestID:    strings.TrimSpace(req.RequestID),
	}
	if err := s.records.CreateRecord(ctx, record); err != nil {
		return domain.Record{}, false, fmt.Errorf("create record: %w", err)
	}
	if err := s.identifiers.CreateIdentifier(ctx, domain.Identifier{
		ID:         uuid.NewString(),
		Type:       domain.IdentifierIGSN,
		Value:      value,
		Status:     domain.IdentifierReserved,
		RecordID:   record.ID,
		CreatedAt:  now,
		ModifiedAt: now,
		RequestID:  strings.TrimSpace(req.RequestID),
	}); err != nil {
		return domain.Record{}, false, fmt.Errorf("create identifier: %w", err)
	}
	return record, true, nil
}

func (s *Service) markAccessible(ctx context.Context, recordID string) error {
	identifier, err := s.identifiers.PrimaryIdentifier(ctx, recordID)
	if err != nil {
		return fmt.Errorf("load primary identifier: %w", err)
	}
	if identifier.Status == domain.IdentifierAccessible {
		return nil
	}
	if err := s.identifiers.UpdateStatus(ctx, identifier.ID, domain.IdentifierAccessible, s.now().UTC()); err != nil {
		return fmt.Errorf("mark identifier accessible: %w", err)
	}
	return nil
}

// fanOutTransforms materializes the derived schema versions. A failed
// transform is logged and skipped; the canonical write stands.
func (s *Service) fanOutTransforms(ctx context.Context, desc schema.Descriptor, record domain.Record, source domain.Version, eventType domain.EventType, req Request) {
	landingPage := ""
	if provider, err := s.providers.LandingPage(desc.ID); err == nil {
		if page, err := provider.LandingPage(source.Content); err == nil {
			landingPage = page
		}
	}

	targets := []string{schema.Registration, schema.OAIDC, schema.JSONLD}
	for _, target := range targets {
		transformer, err := s.transforms.New(desc.ID, target)
		if err != nil {
			s.logger.Error("transformer missing", "from", desc.ID, "to", target, "error", err)
			continue
		}
		transformer.
			SetParam(transform.ParamEventType, string(eventType)).
			SetParam(transform.ParamRegistrantName, s.registrantName).
			SetParam(transform.ParamTimestamp, source.CreatedAt.UTC().Format(time.RFC3339)).
			SetParam(transform.ParamLandingPage, landingPage)

		derived, err := transformer.Transform(source)
		if err != nil {
			s.logger.Error("transform failed",
				"record_id", record.ID, "from", desc.ID, "to", target,
				"request_id", req.RequestID, "error", err)
			continue
		}
		prov := versions.Provenance{
			CreatorID: derived.CreatorID,
			RequestID: derived.RequestID,
			CreatedAt: derived.CreatedAt,
		}
		if _, _, err := s.versionSvc.UpsertCurrent(ctx, record.ID, target, derived.Content, prov); err != nil {
			s.logger.Error("store derived version failed",
				"record_id", record.ID, "schema", target,
				"request_id", req.RequestID, "error", err)
		}
	}
}
