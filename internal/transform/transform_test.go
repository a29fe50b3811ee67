package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
)

const sourceDocument = `<resources>
  <resource registeredObjectType="sample">
    <resourceIdentifier>10273/XX0001</resourceIdentifier>
    <landingPage>https://example.edu.au/samples/XX0001</landingPage>
    <resourceTitle>Drill core XX0001</resourceTitle>
    <logDate eventType="registered">2024-03-01</logDate>
  </resource>
</resources>`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	schemas, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() err=%v", err)
	}
	eng, err := NewEngine(schemas)
	if err != nil {
		t.Fatalf("NewEngine() err=%v", err)
	}
	return eng
}

func sourceVersion() domain.Version {
	content := []byte(sourceDocument)
	return domain.Version{
		ID:        "ver-1",
		RecordID:  "rec-1",
		SchemaID:  schema.ARDCDescriptive,
		Content:   content,
		Hash:      domain.ContentHash(content),
		Current:   true,
		CreatedAt: time.Now(),
		CreatorID: "user-1",
		RequestID: "req-1",
	}
}

func TestTransformerLookup(t *testing.T) {
	eng := newTestEngine(t)
	for _, to := range []string{schema.Registration, schema.OAIDC, schema.JSONLD} {
		if _, err := eng.New(schema.ARDCDescriptive, to); err != nil {
			t.Fatalf("New(%s, %s) err=%v", schema.ARDCDescriptive, to, err)
		}
		if _, err := eng.New(schema.IGSNDescriptive, to); err != nil {
			t.Fatalf("New(%s, %s) err=%v", schema.IGSNDescriptive, to, err)
		}
	}

	if _, err := eng.New(schema.Registration, schema.OAIDC); !errors.Is(err, ErrTransformerNotFound) {
		t.Fatalf("expected ErrTransformerNotFound, got %v", err)
	}
	if _, err := eng.New(schema.OAIDC, schema.ARDCDescriptive); !errors.Is(err, ErrTransformerNotFound) {
		t.Fatalf("expected ErrTransformerNotFound for reverse pair, got %v", err)
	}
}

func TestTransformPreservesProvenance(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.JSONLD)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	source := sourceVersion()
	derived, err := tr.Transform(source)
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}

	if derived.RecordID != source.RecordID {
		t.Fatalf("record id changed: %s", derived.RecordID)
	}
	if derived.SchemaID != schema.JSONLD {
		t.Fatalf("expected schema %s, got %s", schema.JSONLD, derived.SchemaID)
	}
	if derived.RequestID != source.RequestID {
		t.Fatalf("request id not carried forward: %q", derived.RequestID)
	}
	if derived.Hash != domain.ContentHash(derived.Content) {
		t.Fatalf("derived hash does not match derived content")
	}
	if derived.Hash == source.Hash {
		t.Fatalf("derived version reused the source hash")
	}
	if err := derived.Validate(); err != nil {
		t.Fatalf("derived version invalid: %v", err)
	}
}

func TestTransformRejectsWrongSourceSchema(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.OAIDC)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	source := sourceVersion()
	source.SchemaID = schema.IGSNDescriptive
	if _, err := tr.Transform(source); err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestTransformDeterministicContent(t *testing.T) {
	eng := newTestEngine(t)
	source := sourceVersion()

	run := func() []byte {
		tr, err := eng.New(schema.ARDCDescriptive, schema.OAIDC)
		if err != nil {
			t.Fatalf("New() err=%v", err)
		}
		derived, err := tr.SetParam(ParamLandingPage, "https://hdl.example.org/XX0001").Transform(source)
		if err != nil {
			t.Fatalf("Transform() err=%v", err)
		}
		return derived.Content
	}

	first := run()
	second := run()
	if !bytes.Equal(first, second) {
		t.Fatalf("same source and params produced different content")
	}
}

func TestRegistrationTransform(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.Registration)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	derived, err := tr.
		SetParam(ParamEventType, string(domain.EventUpdated)).
		SetParam(ParamRegistrantName, "Example University").
		Transform(sourceVersion())
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}

	out := string(derived.Content)
	for _, want := range []string{
		"10273/XX0001",
		`event="updated"`,
		"Example University",
		"http://schema.igsn.org/description/1.0",
		"https://example.edu.au/samples/XX0001",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("registration output missing %q:\n%s", want, out)
		}
	}
}

func TestSetParamOverwrites(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.Registration)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	derived, err := tr.
		SetParam(ParamEventType, string(domain.EventRegistered)).
		SetParam(ParamEventType, string(domain.EventDeprecated)).
		Transform(sourceVersion())
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}
	if !strings.Contains(string(derived.Content), `event="deprecated"`) {
		t.Fatalf("later parameter value did not win:\n%s", derived.Content)
	}
}

func TestDublinCoreTransform(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.OAIDC)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	derived, err := tr.Transform(sourceVersion())
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}
	out := string(derived.Content)
	for _, want := range []string{
		"<dc:title>Drill core XX0001</dc:title>",
		"<dc:identifier>10273/XX0001</dc:identifier>",
		"<dc:identifier>https://example.edu.au/samples/XX0001</dc:identifier>",
		"<dc:type>sample</dc:type>",
		"<dc:date>2024-03-01</dc:date>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("oai_dc output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONLDTransform(t *testing.T) {
	eng := newTestEngine(t)
	tr, err := eng.New(schema.ARDCDescriptive, schema.JSONLD)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	derived, err := tr.Transform(sourceVersion())
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(derived.Content, &doc); err != nil {
		t.Fatalf("derived content is not JSON: %v", err)
	}
	if doc["identifier"] != "10273/XX0001" {
		t.Fatalf("unexpected identifier %v", doc["identifier"])
	}
	if doc["name"] != "Drill core XX0001" {
		t.Fatalf("unexpected name %v", doc["name"])
	}
	if doc["url"] != "https://example.edu.au/samples/XX0001" {
		t.Fatalf("unexpected url %v", doc["url"])
	}
	if doc["@context"] != "https://schema.org" {
		t.Fatalf("unexpected context %v", doc["@context"])
	}
}
