package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
)

// Document mirrors the elements of the IGSN descriptive
// schemas this registry extracts from. Unknown elements are ignored.
type Document struct {
	XMLName   xml.Name   `xml:"resources"`
	Resources []Resource `xml:"resource"`
}

type Resource struct {
	RegisteredObjectType string         `xml:"registeredObjectType,attr"`
	Identifier           string         `xml:"resourceIdentifier"`
	LandingPage          string         `xml:"landingPage"`
	IsPublic             *PublicElement `xml:"isPublic"`
	Title                string         `xml:"resourceTitle"`
	LogDates             []LogDate      `xml:"logDate"`
}

type PublicElement struct {
	Value      string `xml:",chardata"`
	EmbargoEnd string `xml:"embargoEnd,attr"`
}

type LogDate struct {
	EventType string `xml:"eventType,attr"`
	Value     string `xml:",chardata"`
}

func ParseDescriptive(schemaID string, content []byte) (Document, error) {
	var doc Document
	if err := xml.Unmarshal(content, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: schema %s: %v", schema.ErrContentInvalid, schemaID, err)
	}
	if len(doc.Resources) == 0 {
		return Document{}, fmt.Errorf("%w: schema %s: no resource element", schema.ErrContentInvalid, schemaID)
	}
	return doc, nil
}

// descriptiveProvider serves every extraction capability for the
// descriptive markup schemas.
type descriptiveProvider struct {
	schemaID string
}

func (p descriptiveProvider) primary(content []byte) (Resource, error) {
	doc, err := ParseDescriptive(p.schemaID, content)
	if err != nil {
		return Resource{}, err
	}
	return doc.Resources[0], nil
}

func (p descriptiveProvider) Title(content []byte) (string, error) {
	res, err := p.primary(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Title), nil
}

func (p descriptiveProvider) LandingPage(content []byte) (string, error) {
	res, err := p.primary(content)
	if err != nil {
		return "", err
	}
	page := strings.TrimSpace(res.LandingPage)
	if page == "" {
		return "", fmt.Errorf("%w: schema %s: landingPage is required", schema.ErrContentInvalid, p.schemaID)
	}
	return page, nil
}

func (p descriptiveProvider) IdentifierValue(content []byte) (string, error) {
	res, err := p.primary(content)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(res.Identifier)
	if value == "" {
		return "", fmt.Errorf("%w: schema %s: resourceIdentifier is required", schema.ErrContentInvalid, p.schemaID)
	}
	return value, nil
}

func (p descriptiveProvider) EmbargoEnd(content []byte) (*time.Time, error) {
	res, err := p.primary(content)
	if err != nil {
		return nil, err
	}
	if res.IsPublic == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(res.IsPublic.EmbargoEnd)
	if raw == "" {
		return nil, nil
	}
	end, err := parseFlexibleTime(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: schema %s: embargoEnd %q: %v", schema.ErrContentInvalid, p.schemaID, raw, err)
	}
	return &end, nil
}

func (p descriptiveProvider) Visible(content []byte) (bool, error) {
	res, err := p.primary(content)
	if err != nil {
		return false, err
	}
	// Absent or blank marker means visible.
	if res.IsPublic == nil {
		return true, nil
	}
	raw := strings.TrimSpace(res.IsPublic.Value)
	if raw == "" {
		return true, nil
	}
	visible, err := strconv.ParseBool(raw)
	if err != nil {
		return true, nil
	}
	return visible, nil
}

// latestEvent returns the most recent logged event type across the
// document's resources. Undated entries sort before dated ones; ties
// keep document order, so the last written entry wins.
func (p descriptiveProvider) latestEvent(content []byte) (string, error) {
	doc, err := ParseDescriptive(p.schemaID, content)
	if err != nil {
		return "", err
	}
	type datedEvent struct {
		eventType string
		at        time.Time
		order     int
	}
	events := make([]datedEvent, 0, 4)
	order := 0
	for _, res := range doc.Resources {
		for _, entry := range res.LogDates {
			eventType := strings.ToLower(strings.TrimSpace(entry.EventType))
			if eventType == "" {
				continue
			}
			at, err := parseFlexibleTime(strings.TrimSpace(entry.Value))
			if err != nil {
				at = time.Time{}
			}
			events = append(events, datedEvent{eventType: eventType, at: at, order: order})
			order++
		}
	}
	if len(events) == 0 {
		return "", nil
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].order < events[j].order
		}
		return events[i].at.Before(events[j].at)
	})
	return events[len(events)-1].eventType, nil
}

// FragmentCount reports how many standalone resources the batch
// document contains.
func (p descriptiveProvider) FragmentCount(content []byte) (int, error) {
	doc, err := ParseDescriptive(p.schemaID, content)
	if err != nil {
		return 0, err
	}
	return len(doc.Resources), nil
}

// Fragment extracts the index-th resource as a standalone document.
// The resource element is sliced out of the original bytes so the
// fragment keeps the exact markup of the source, wrapped in the
// original root element.
func (p descriptiveProvider) Fragment(content []byte, index int) ([]byte, error) {
	spans, root, err := resourceSpans(content)
	if err != nil {
		return nil, fmt.Errorf("%w: schema %s: %v", schema.ErrContentInvalid, p.schemaID, err)
	}
	if index < 0 || index >= len(spans) {
		return nil, fmt.Errorf("fragment index %d out of range [0,%d)", index, len(spans))
	}
	span := spans[index]

	var out bytes.Buffer
	out.Write(content[root.start:root.openEnd])
	out.Write(content[span.start:span.end])
	out.WriteString("</")
	out.WriteString(root.name)
	out.WriteString(">")
	return out.Bytes(), nil
}

type byteSpan struct {
	start int64
	end   int64
}

type rootSpan struct {
	start   int64
	openEnd int64
	name    string
}

// resourceSpans walks the document once, recording the byte range of
// the root open tag and of each depth-1 resource element.
func resourceSpans(content []byte) ([]byteSpan, rootSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		spans     []byteSpan
		root      rootSpan
		depth     int
		openStart int64
		current   int64 = -1
	)
	for {
		offsetBefore := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rootSpan{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				root = rootSpan{start: offsetBefore, openEnd: dec.InputOffset(), name: t.Name.Local}
			}
			if depth == 2 && t.Name.Local == "resource" {
				openStart = offsetBefore
				current = openStart
			}
		case xml.EndElement:
			if depth == 2 && t.Name.Local == "resource" && current >= 0 {
				spans = append(spans, byteSpan{start: current, end: dec.InputOffset()})
				current = -1
			}
			depth--
		}
	}
	if root.name == "" {
		return nil, rootSpan{}, fmt.Errorf("no root element")
	}
	return spans, root, nil
}

// parseFlexibleTime accepts the timestamp shapes seen in descriptive
// metadata: bare year, date, and RFC3339 with or without zone.
func parseFlexibleTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"2006-01",
		"2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
