package metadata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
)

// jsonLDProvider extracts from the structured-object schema. The
// document is a schema.org-flavored object as produced by the
// descriptive-to-object transform.
type jsonLDProvider struct{}

type jsonLDDocument struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Identifier string `json:"identifier"`
}

func (p jsonLDProvider) parse(content []byte) (jsonLDDocument, error) {
	var doc jsonLDDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return jsonLDDocument{}, fmt.Errorf("%w: schema %s: %v", schema.ErrContentInvalid, schema.JSONLD, err)
	}
	return doc, nil
}

func (p jsonLDProvider) Title(content []byte) (string, error) {
	doc, err := p.parse(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Name), nil
}

func (p jsonLDProvider) LandingPage(content []byte) (string, error) {
	doc, err := p.parse(content)
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(doc.URL)
	if url == "" {
		return "", fmt.Errorf("%w: schema %s: url is required", schema.ErrContentInvalid, schema.JSONLD)
	}
	return url, nil
}

func (p jsonLDProvider) IdentifierValue(content []byte) (string, error) {
	doc, err := p.parse(content)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(doc.Identifier)
	if value == "" {
		return "", fmt.Errorf("%w: schema %s: identifier is required", schema.ErrContentInvalid, schema.JSONLD)
	}
	return value, nil
}
