package domain

import (
	"testing"
	"time"
)

func validRecord() Record {
	return Record{
		ID:           "rec-1",
		Status:       RecordPublished,
		Visible:      true,
		OwnerType:    OwnerUser,
		OwnerID:      "user-1",
		AllocationID: "alloc-1",
		CreatorID:    "user-1",
		CreatedAt:    time.Now(),
	}
}

func TestRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing id", func(r *Record) { r.ID = " " }},
		{"bad status", func(r *Record) { r.Status = "ARCHIVED" }},
		{"bad owner type", func(r *Record) { r.OwnerType = "Group" }},
		{"missing owner", func(r *Record) { r.OwnerID = "" }},
		{"missing allocation", func(r *Record) { r.AllocationID = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record := validRecord()
			tc.mutate(&record)
			if err := record.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestIdentifierStatusTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    IdentifierStatus
		to      IdentifierStatus
		wantErr bool
	}{
		{"reserved to accessible", IdentifierReserved, IdentifierAccessible, false},
		{"reserved no-op", IdentifierReserved, IdentifierReserved, false},
		{"accessible no-op", IdentifierAccessible, IdentifierAccessible, false},
		{"accessible back to reserved", IdentifierAccessible, IdentifierReserved, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStatusTransition(tc.from, tc.to)
			if tc.wantErr && err == nil {
				t.Fatalf("expected transition error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("ValidateStatusTransition() err=%v", err)
			}
		})
	}
}

func TestVersionValidate(t *testing.T) {
	content := []byte("<resource/>")
	now := time.Now()
	version := Version{
		ID:        "ver-1",
		RecordID:  "rec-1",
		SchemaID:  "ardc-igsn-desc-1.0",
		Content:   content,
		Hash:      ContentHash(content),
		Current:   true,
		CreatedAt: now,
		CreatorID: "user-1",
	}
	if err := version.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	tampered := version
	tampered.Content = []byte("<resource>x</resource>")
	if err := tampered.Validate(); err == nil {
		t.Fatalf("expected hash mismatch error")
	}

	superseded := version
	superseded.Current = false
	if err := superseded.Validate(); err == nil {
		t.Fatalf("expected ended_at error for superseded version")
	}
	ended := now.Add(time.Minute)
	superseded.EndedAt = &ended
	if err := superseded.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	currentWithEnd := version
	currentWithEnd.EndedAt = &ended
	if err := currentWithEnd.Validate(); err == nil {
		t.Fatalf("expected error for current version with ended_at")
	}
}

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash([]byte("payload"))
	b := ContentHash([]byte("payload"))
	if a != b {
		t.Fatalf("hashes differ: %s vs %s", a, b)
	}
	if a == ContentHash([]byte("payload ")) {
		t.Fatalf("expected different hash for different content")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestEnsureVersionImmutable(t *testing.T) {
	content := []byte("<resource/>")
	now := time.Now()
	before := Version{
		ID:        "ver-1",
		RecordID:  "rec-1",
		SchemaID:  "ardc-igsn-desc-1.0",
		Content:   content,
		Hash:      ContentHash(content),
		Current:   true,
		CreatedAt: now,
	}

	ended := now.Add(time.Minute)
	superseded := before
	superseded.Current = false
	superseded.EndedAt = &ended
	if err := EnsureVersionImmutable(before, superseded); err != nil {
		t.Fatalf("supersession should be allowed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Version)
	}{
		{"content changed", func(v *Version) { v.Content = []byte("other"); v.Hash = ContentHash(v.Content) }},
		{"record moved", func(v *Version) { v.RecordID = "rec-2" }},
		{"schema changed", func(v *Version) { v.SchemaID = "oai_dc" }},
		{"created_at changed", func(v *Version) { v.CreatedAt = now.Add(time.Hour) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			after := before
			tc.mutate(&after)
			if err := EnsureVersionImmutable(before, after); err == nil {
				t.Fatalf("expected immutability error")
			}
		})
	}

	revived := superseded
	revived.Current = true
	revived.EndedAt = nil
	if err := EnsureVersionImmutable(superseded, revived); err == nil {
		t.Fatalf("expected error reviving a superseded version")
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, eventType := range []EventType{EventRegistered, EventUpdated, EventDestroyed, EventDeprecated} {
		if !eventType.Valid() {
			t.Fatalf("expected %s to be valid", eventType)
		}
	}
	if EventType("submitted").Valid() {
		t.Fatalf("expected submitted to be invalid")
	}
}

func TestEventTypeRegistryStatus(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      RegistryStatus
	}{
		{EventRegistered, StatusRegistered},
		{EventUpdated, StatusRegistered},
		{EventDestroyed, StatusDestroyed},
		{EventDeprecated, StatusDeprecated},
		{EventType("submitted"), StatusUnknown},
		{EventType(""), StatusUnknown},
	}
	for _, tc := range tests {
		if got := tc.eventType.RegistryStatus(); got != tc.want {
			t.Fatalf("RegistryStatus(%q) = %s, want %s", tc.eventType, got, tc.want)
		}
	}
}
