package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
)

type jsonLDDocument struct {
	Context    string `json:"@context"`
	Type       string `json:"@type"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
	URL        string `json:"url,omitempty"`
}

func jsonLDTransform(fromSchema string, content []byte, params map[string]string) ([]byte, error) {
	doc, err := metadata.ParseDescriptive(fromSchema, content)
	if err != nil {
		return nil, err
	}
	res := doc.Resources[0]
	value := strings.TrimSpace(res.Identifier)
	if value == "" {
		return nil, fmt.Errorf("resourceIdentifier is required for json-ld metadata")
	}

	url := strings.TrimSpace(params[ParamLandingPage])
	if url == "" {
		url = strings.TrimSpace(res.LandingPage)
	}

	out, err := json.MarshalIndent(jsonLDDocument{
		Context:    "https://schema.org",
		Type:       "Thing",
		Identifier: value,
		Name:       strings.TrimSpace(res.Title),
		URL:        url,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json-ld metadata: %w", err)
	}
	return out, nil
}
