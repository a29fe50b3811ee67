package derive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
)

type stubVersionRepo struct {
	mu       sync.Mutex
	versions map[string]domain.Version
}

func versionKey(recordID, schemaID string) string { return recordID + "/" + schemaID }

func (s *stubVersionRepo) InsertVersion(ctx context.Context, version domain.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions == nil {
		s.versions = map[string]domain.Version{}
	}
	s.versions[versionKey(version.RecordID, version.SchemaID)] = version
	return nil
}

func (s *stubVersionRepo) EndVersion(ctx context.Context, versionID string, endedAt time.Time) error {
	return nil
}

func (s *stubVersionRepo) SupersedeVersion(ctx context.Context, versionID string, endedAt time.Time, next domain.Version) error {
	return s.InsertVersion(ctx, next)
}

func (s *stubVersionRepo) FindCurrent(ctx context.Context, recordID, schemaID string) (domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, ok := s.versions[versionKey(recordID, schemaID)]
	if !ok {
		return domain.Version{}, repo.ErrNotFound
	}
	return version, nil
}

func (s *stubVersionRepo) FindAllCurrent(ctx context.Context, recordID string) ([]domain.Version, error) {
	return nil, nil
}

func (s *stubVersionRepo) CurrentCount(ctx context.Context, recordID, schemaID string) (int, error) {
	return 0, nil
}

type stubRecordRepo struct {
	derivedTitle  string
	derivedStatus domain.RegistryStatus
	updates       int
}

func (s *stubRecordRepo) CreateRecord(ctx context.Context, record domain.Record) error { return nil }

func (s *stubRecordRepo) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	return domain.Record{}, repo.ErrNotFound
}

func (s *stubRecordRepo) FindRecordByIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Record, error) {
	return domain.Record{}, repo.ErrNotFound
}

func (s *stubRecordRepo) UpdateDerived(ctx context.Context, recordID, title string, status domain.RegistryStatus, modifierID string, modifiedAt time.Time) error {
	s.derivedTitle = title
	s.derivedStatus = status
	s.updates++
	return nil
}

type stubIdentifierRepo struct {
	primary    domain.Identifier
	primaryErr error
}

func (s *stubIdentifierRepo) CreateIdentifier(ctx context.Context, identifier domain.Identifier) error {
	return nil
}

func (s *stubIdentifierRepo) GetIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Identifier, error) {
	return domain.Identifier{}, repo.ErrNotFound
}

func (s *stubIdentifierRepo) PrimaryIdentifier(ctx context.Context, recordID string) (domain.Identifier, error) {
	if s.primaryErr != nil {
		return domain.Identifier{}, s.primaryErr
	}
	return s.primary, nil
}

func (s *stubIdentifierRepo) UpdateStatus(ctx context.Context, id string, status domain.IdentifierStatus, modifiedAt time.Time) error {
	return nil
}

type stubEventRepo struct {
	latest domain.RecordEvent
}

func (s *stubEventRepo) AppendEvent(ctx context.Context, event domain.RecordEvent) (int64, error) {
	return 0, nil
}

func (s *stubEventRepo) LatestEvent(ctx context.Context, recordID string) (domain.RecordEvent, error) {
	if s.latest.Type == "" {
		return domain.RecordEvent{}, repo.ErrNotFound
	}
	return s.latest, nil
}

func newTestTask(t *testing.T, store *stubVersionRepo, records *stubRecordRepo, identifiers *stubIdentifierRepo, events *stubEventRepo) *Task {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	schemas, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() err=%v", err)
	}
	providers, err := metadata.NewRegistry(schemas)
	if err != nil {
		t.Fatalf("metadata.NewRegistry() err=%v", err)
	}
	versionSvc, err := versions.NewService(store)
	if err != nil {
		t.Fatalf("versions.NewService() err=%v", err)
	}
	task, err := NewTask(logger, schemas, providers, versionSvc, records, identifiers, events)
	if err != nil {
		t.Fatalf("NewTask() err=%v", err)
	}
	return task
}

func canonicalVersion(recordID, body string) domain.Version {
	content := []byte(body)
	return domain.Version{
		ID:        "ver-1",
		RecordID:  recordID,
		SchemaID:  schema.ARDCDescriptive,
		Content:   content,
		Hash:      domain.ContentHash(content),
		Current:   true,
		CreatedAt: time.Now(),
	}
}

func TestDeriveWritesTitleAndStatus(t *testing.T) {
	ctx := context.Background()
	store := &stubVersionRepo{}
	records := &stubRecordRepo{}
	identifiers := &stubIdentifierRepo{primary: domain.Identifier{ID: "id-1", Status: domain.IdentifierAccessible}}
	task := newTestTask(t, store, records, identifiers, &stubEventRepo{})

	_ = store.InsertVersion(ctx, canonicalVersion("rec-1", `<resources><resource>
		<resourceIdentifier>10273/AA0001</resourceIdentifier>
		<landingPage>https://example.org/a</landingPage>
		<resourceTitle>Basalt core AA0001</resourceTitle>
		<logDate eventType="registered">2024-03-01</logDate>
	</resource></resources>`))

	if err := task.Run(ctx, "rec-1", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.derivedTitle != "Basalt core AA0001" {
		t.Fatalf("unexpected derived title %q", records.derivedTitle)
	}
	if records.derivedStatus != domain.StatusRegistered {
		t.Fatalf("expected Registered, got %s", records.derivedStatus)
	}
}

func TestDeriveReservedIdentifierWins(t *testing.T) {
	ctx := context.Background()
	store := &stubVersionRepo{}
	records := &stubRecordRepo{}
	identifiers := &stubIdentifierRepo{primary: domain.Identifier{ID: "id-1", Status: domain.IdentifierReserved}}
	task := newTestTask(t, store, records, identifiers, &stubEventRepo{})

	_ = store.InsertVersion(ctx, canonicalVersion("rec-1", `<resources><resource>
		<resourceIdentifier>10273/AA0001</resourceIdentifier>
		<landingPage>https://example.org/a</landingPage>
		<logDate eventType="registered">2024-03-01</logDate>
	</resource></resources>`))

	if err := task.Run(ctx, "rec-1", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.derivedStatus != domain.StatusReserved {
		t.Fatalf("expected Reserved, got %s", records.derivedStatus)
	}
}

func TestDeriveFallsBackToEventLog(t *testing.T) {
	ctx := context.Background()
	store := &stubVersionRepo{}
	records := &stubRecordRepo{}
	identifiers := &stubIdentifierRepo{primary: domain.Identifier{ID: "id-1", Status: domain.IdentifierAccessible}}
	events := &stubEventRepo{latest: domain.RecordEvent{RecordID: "rec-1", Type: domain.EventDeprecated}}
	task := newTestTask(t, store, records, identifiers, events)

	// A document without logDates yields no status on its own.
	_ = store.InsertVersion(ctx, canonicalVersion("rec-1", `<resources><resource>
		<resourceIdentifier>10273/AA0001</resourceIdentifier>
		<landingPage>https://example.org/a</landingPage>
		<resourceTitle>Basalt core AA0001</resourceTitle>
	</resource></resources>`))

	if err := task.Run(ctx, "rec-1", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.derivedStatus != domain.StatusDeprecated {
		t.Fatalf("expected Deprecated from event log, got %s", records.derivedStatus)
	}
}

func TestDeriveSkipsWithoutCanonicalVersion(t *testing.T) {
	ctx := context.Background()
	records := &stubRecordRepo{}
	task := newTestTask(t, &stubVersionRepo{}, records, &stubIdentifierRepo{}, &stubEventRepo{})

	if err := task.Run(ctx, "rec-unknown", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.updates != 0 {
		t.Fatalf("expected no derived write, got %d", records.updates)
	}
}

func TestDeriveTitleFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	store := &stubVersionRepo{}
	records := &stubRecordRepo{}
	identifiers := &stubIdentifierRepo{primary: domain.Identifier{ID: "id-1", Status: domain.IdentifierAccessible}}
	task := newTestTask(t, store, records, identifiers, &stubEventRepo{})

	// Content that is not a descriptive document at all.
	_ = store.InsertVersion(ctx, canonicalVersion("rec-1", `not xml`))

	if err := task.Run(ctx, "rec-1", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.updates != 1 {
		t.Fatalf("expected one derived write, got %d", records.updates)
	}
	if records.derivedTitle != "" {
		t.Fatalf("expected empty title, got %q", records.derivedTitle)
	}
	if records.derivedStatus != domain.StatusUnknown {
		t.Fatalf("expected Unknown, got %s", records.derivedStatus)
	}
}

func TestDeriveNoPrimaryIdentifier(t *testing.T) {
	ctx := context.Background()
	store := &stubVersionRepo{}
	records := &stubRecordRepo{}
	identifiers := &stubIdentifierRepo{primaryErr: repo.ErrNotFound}
	task := newTestTask(t, store, records, identifiers, &stubEventRepo{})

	_ = store.InsertVersion(ctx, canonicalVersion("rec-1", `<resources><resource>
		<resourceIdentifier>10273/AA0001</resourceIdentifier>
		<landingPage>https://example.org/a</landingPage>
		<resourceTitle>Basalt core AA0001</resourceTitle>
	</resource></resources>`))

	if err := task.Run(ctx, "rec-1", "user-2"); err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if records.derivedTitle != "Basalt core AA0001" {
		t.Fatalf("unexpected derived title %q", records.derivedTitle)
	}
}
