package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/oai"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
)

type emptyVersionRepo struct{}

func (emptyVersionRepo) InsertVersion(ctx context.Context, version domain.Version) error { return nil }

func (emptyVersionRepo) EndVersion(ctx context.Context, versionID string, endedAt time.Time) error {
	return nil
}

func (emptyVersionRepo) SupersedeVersion(ctx context.Context, versionID string, endedAt time.Time, next domain.Version) error {
	return nil
}

func (emptyVersionRepo) FindCurrent(ctx context.Context, recordID, schemaID string) (domain.Version, error) {
	return domain.Version{}, repo.ErrNotFound
}

func (emptyVersionRepo) FindAllCurrent(ctx context.Context, recordID string) ([]domain.Version, error) {
	return nil, nil
}

func (emptyVersionRepo) CurrentCount(ctx context.Context, recordID, schemaID string) (int, error) {
	return 0, nil
}

type emptyRecordRepo struct{}

func (emptyRecordRepo) CreateRecord(ctx context.Context, record domain.Record) error { return nil }

func (emptyRecordRepo) GetRecord(ctx context.Context, id string) (domain.Record, error) {
	return domain.Record{}, repo.ErrNotFound
}

func (emptyRecordRepo) FindRecordByIdentifier(ctx context.Context, idType domain.IdentifierType, value string) (domain.Record, error) {
	return domain.Record{}, repo.ErrNotFound
}

func (emptyRecordRepo) UpdateDerived(ctx context.Context, recordID, title string, status domain.RegistryStatus, modifierID string, modifiedAt time.Time) error {
	return nil
}

type emptyHarvestRepo struct{}

func (emptyHarvestRepo) HarvestPage(ctx context.Context, filter repo.HarvestFilter) ([]repo.HarvestItem, error) {
	return nil, nil
}

func (emptyHarvestRepo) HarvestCount(ctx context.Context, filter repo.HarvestFilter) (int, error) {
	return 0, nil
}

type failingHarvestRepo struct{}

func (failingHarvestRepo) HarvestPage(ctx context.Context, filter repo.HarvestFilter) ([]repo.HarvestItem, error) {
	return nil, errors.New("connection refused")
}

func (failingHarvestRepo) HarvestCount(ctx context.Context, filter repo.HarvestFilter) (int, error) {
	return 0, errors.New("connection refused")
}

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOAIAPI(t *testing.T, harvest repo.HarvestRepository) *registryAPI {
	t.Helper()
	schemas, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() err=%v", err)
	}
	versionSvc, err := versions.NewService(emptyVersionRepo{})
	if err != nil {
		t.Fatalf("versions.NewService() err=%v", err)
	}
	responder, err := oai.NewResponder(newTestLogger(t), schemas, emptyRecordRepo{}, versionSvc, harvest, oai.Config{
		RepositoryName: "Test Registry",
		BaseURL:        "http://localhost/api/service/oai",
		AdminEmail:     "admin@example.org",
	})
	if err != nil {
		t.Fatalf("oai.NewResponder() err=%v", err)
	}
	return newRegistryAPI(newTestLogger(t), responder, nil)
}

func TestHandleOAIAlwaysReturnsXML(t *testing.T) {
	api := newOAIAPI(t, emptyHarvestRepo{})

	tests := []struct {
		name      string
		query     string
		wantChunk string
	}{
		{"identify", "verb=Identify", "<repositoryName>Test Registry</repositoryName>"},
		{"bad verb", "verb=Harvest", `code="badVerb"`},
		{"missing verb", "", `code="badVerb"`},
		{"missing prefix", "verb=ListRecords", `code="badArgument"`},
		{"no records", "verb=ListRecords&metadataPrefix=oai_dc", `code="noRecordsMatch"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/service/oai?"+tc.query, nil)
			rec := httptest.NewRecorder()
			api.handleOAI(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
				t.Fatalf("unexpected content type %q", ct)
			}
			body := rec.Body.String()
			if !strings.HasPrefix(body, "<?xml") {
				t.Fatalf("response missing XML declaration:\n%s", body)
			}
			if !strings.Contains(body, "<OAI-PMH") {
				t.Fatalf("response missing envelope:\n%s", body)
			}
			if !strings.Contains(body, tc.wantChunk) {
				t.Fatalf("response missing %q:\n%s", tc.wantChunk, body)
			}
		})
	}
}

func TestHandleOAIStoreFailureIs500(t *testing.T) {
	api := newOAIAPI(t, failingHarvestRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/service/oai?verb=ListRecords&metadataPrefix=oai_dc", nil)
	rec := httptest.NewRecorder()
	api.handleOAI(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "harvest_failed" {
		t.Fatalf("expected harvest_failed, got %v", body["error"])
	}
}

func TestHandleImportRejectsBadParams(t *testing.T) {
	api := newRegistryAPI(newTestLogger(t), nil, nil)

	tests := []struct {
		name     string
		query    string
		body     string
		wantCode string
	}{
		{"missing owner", "allocationId=a1", "<resources/>", "owner_id_required"},
		{"missing allocation", "ownerId=u1", "<resources/>", "allocation_id_required"},
		{"bad owner type", "ownerId=u1&allocationId=a1&ownerType=Group", "<resources/>", "owner_type_invalid"},
		{"bad event type", "ownerId=u1&allocationId=a1&eventType=submitted", "<resources/>", "event_type_invalid"},
		{"empty payload", "ownerId=u1&allocationId=a1", "", "payload_required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/service/import?"+tc.query, strings.NewReader(tc.body))
			req.Header.Set("X-Request-Id", "req-1")
			rec := httptest.NewRecorder()
			api.handleImport(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected error %q, got %v", tc.wantCode, body["error"])
			}
			if body["request_id"] != "req-1" {
				t.Fatalf("expected request_id req-1, got %v", body["request_id"])
			}
		})
	}
}
