package transform

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
)

// dublinCoreDocument is the oai_dc rendering harvested by aggregators.
// Literal prefixed names keep the marshalled output in the exact form
// the OAI-PMH ecosystem expects.
type dublinCoreDocument struct {
	XMLName     xml.Name `xml:"oai_dc:dc"`
	NSOAIDC     string   `xml:"xmlns:oai_dc,attr"`
	NSDC        string   `xml:"xmlns:dc,attr"`
	Title       string   `xml:"dc:title,omitempty"`
	Identifiers []string `xml:"dc:identifier"`
	Type        string   `xml:"dc:type,omitempty"`
	Dates       []string `xml:"dc:date,omitempty"`
}

func dublinCoreTransform(fromSchema string, content []byte, params map[string]string) ([]byte, error) {
	doc, err := metadata.ParseDescriptive(fromSchema, content)
	if err != nil {
		return nil, err
	}
	res := doc.Resources[0]

	identifiers := make([]string, 0, 2)
	if value := strings.TrimSpace(res.Identifier); value != "" {
		identifiers = append(identifiers, value)
	}
	landing := strings.TrimSpace(params[ParamLandingPage])
	if landing == "" {
		landing = strings.TrimSpace(res.LandingPage)
	}
	if landing != "" {
		identifiers = append(identifiers, landing)
	}
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("no identifier available for oai_dc metadata")
	}

	dates := make([]string, 0, len(res.LogDates))
	for _, entry := range res.LogDates {
		if value := strings.TrimSpace(entry.Value); value != "" {
			dates = append(dates, value)
		}
	}

	dc := dublinCoreDocument{
		NSOAIDC:     "http://www.openarchives.org/OAI/2.0/oai_dc/",
		NSDC:        "http://purl.org/dc/elements/1.1/",
		Title:       strings.TrimSpace(res.Title),
		Identifiers: identifiers,
		Type:        strings.TrimSpace(res.RegisteredObjectType),
		Dates:       dates,
	}

	out, err := xml.MarshalIndent(dc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode oai_dc metadata: %w", err)
	}
	return out, nil
}
