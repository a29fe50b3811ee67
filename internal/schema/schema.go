// Package schema holds the static catalog of metadata schemas the
// registry understands. The catalog is compiled in and never mutated
// at runtime; every other component resolves schema ids through it
// instead of hard-coding strings.
package schema

import (
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

// Kind is the document format family of a schema. Provider and
// transformer lookup keys off this tag.
type Kind string

const (
	KindMarkup Kind = "markup"
	KindObject Kind = "object"
	KindText   Kind = "text"
)

// Well-known schema ids from the compiled-in catalog.
const (
	ARDCDescriptive = "ardc-igsn-desc-1.0"
	IGSNDescriptive = "igsn-desc-1.0"
	Registration    = "igsn-reg-1.0"
	OAIDC           = "oai_dc"
	JSONLD          = "igsn-json-ld-1.0"
)

// ErrSchemaNotFound reports a schema id absent from the catalog.
var ErrSchemaNotFound = errors.New("schema not found")

// Descriptor describes one supported schema.
type Descriptor struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"kind"`
	Namespace   string `yaml:"namespace"`
	Canonical   bool   `yaml:"canonical"`
	Harvestable bool   `yaml:"harvestable"`
	Template    string `yaml:"template"`
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("schema id is required")
	}
	switch d.Kind {
	case KindMarkup, KindObject, KindText:
	default:
		return fmt.Errorf("schema %s: unknown kind %q", d.ID, d.Kind)
	}
	if strings.TrimSpace(d.Namespace) == "" {
		return fmt.Errorf("schema %s: namespace is required", d.ID)
	}
	return nil
}

// Registry resolves schema ids to descriptors.
type Registry struct {
	byID      map[string]Descriptor
	order     []string
	canonical string
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Catalog string       `yaml:"catalog"`
	Schemas []Descriptor `yaml:"schemas"`
}

// Load parses a catalog document.
func Load(input []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(input, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if strings.TrimSpace(file.Catalog) == "" {
		return nil, errors.New("catalog header is required")
	}
	if len(file.Schemas) == 0 {
		return nil, errors.New("catalog lists no schemas")
	}

	reg := &Registry{byID: make(map[string]Descriptor, len(file.Schemas))}
	for _, desc := range file.Schemas {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if _, ok := reg.byID[desc.ID]; ok {
			return nil, fmt.Errorf("duplicate schema id %s", desc.ID)
		}
		if desc.Canonical {
			if reg.canonical != "" {
				return nil, fmt.Errorf("multiple canonical schemas: %s and %s", reg.canonical, desc.ID)
			}
			reg.canonical = desc.ID
		}
		reg.byID[desc.ID] = desc
		reg.order = append(reg.order, desc.ID)
	}
	if reg.canonical == "" {
		return nil, errors.New("catalog declares no canonical schema")
	}
	return reg, nil
}

// Default returns the compiled-in catalog.
func Default() (*Registry, error) {
	return Load(catalogYAML)
}

// Resolve looks up a descriptor by schema id.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	if r == nil {
		return Descriptor{}, errors.New("schema registry not initialized")
	}
	desc, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, id)
	}
	return desc, nil
}

// Canonical returns the descriptor of the source-of-truth schema.
func (r *Registry) Canonical() Descriptor {
	desc := r.byID[r.canonical]
	return desc
}

// All returns descriptors in catalog order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Harvestable returns the descriptors exposed through the harvesting
// endpoint, in catalog order.
func (r *Registry) Harvestable() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		if desc := r.byID[id]; desc.Harvestable {
			out = append(out, desc)
		}
	}
	return out
}
